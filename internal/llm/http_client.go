package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/carahq/cara/internal/config"
)

// HTTPClient calls an inference provider's HTTP API directly.
type HTTPClient struct {
	cfg    config.Inference
	apiKey string
	client *http.Client
}

// NewHTTPClient creates a client for the configured provider, reading the
// API key from the environment variable named in the config.
func NewHTTPClient(cfg config.Inference) (*HTTPClient, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("inference: environment variable %s is not set", cfg.APIKeyEnv)
	}

	timeout := time.Duration(cfg.DefaultTimeout()) * time.Second

	return &HTTPClient{
		cfg:    cfg,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Generate implements Client with a single-turn prompt.
func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []Message{{Role: RoleUser, Text: prompt}})
}

// Chat implements Client, sending the full history to the provider.
func (c *HTTPClient) Chat(ctx context.Context, history []Message) (string, error) {
	switch c.cfg.Provider {
	case "openai":
		return c.chatOpenAI(ctx, history)
	case "anthropic":
		return c.chatAnthropic(ctx, history)
	case "google":
		return c.chatGoogle(ctx, history)
	default:
		return "", fmt.Errorf("unsupported inference provider: %s", c.cfg.Provider)
	}
}

// chatOpenAI handles OpenAI-compatible chat completion APIs.
func (c *HTTPClient) chatOpenAI(ctx context.Context, history []Message) (string, error) {
	messages := make([]map[string]string, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, map[string]string{"role": role, "content": m.Text})
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"messages":    messages,
		"max_tokens":  c.cfg.Generation.MaxOutputTokens,
		"temperature": c.cfg.Generation.Temperature,
		"top_p":       c.cfg.Generation.TopP,
	}

	respBody, err := c.post(ctx, "https://api.openai.com/v1/chat/completions", body, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}

// chatAnthropic handles Anthropic's Messages API.
func (c *HTTPClient) chatAnthropic(ctx context.Context, history []Message) (string, error) {
	messages := make([]map[string]string, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, map[string]string{"role": role, "content": m.Text})
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.Generation.MaxOutputTokens,
		"temperature": c.cfg.Generation.Temperature,
		"top_p":       c.cfg.Generation.TopP,
		"messages":    messages,
	}

	respBody, err := c.post(ctx, "https://api.anthropic.com/v1/messages", body, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", nil
	}
	return result.Content[0].Text, nil
}

// chatGoogle handles Google's Generative AI API (Gemini).
func (c *HTTPClient) chatGoogle(ctx context.Context, history []Message) (string, error) {
	model := c.cfg.Model
	if model == "" {
		model = "gemini-pro"
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", model, c.apiKey)

	contents := make([]map[string]any, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []map[string]string{{"text": m.Text}},
		})
	}

	body := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"temperature":     c.cfg.Generation.Temperature,
			"topP":            c.cfg.Generation.TopP,
			"topK":            c.cfg.Generation.TopK,
			"maxOutputTokens": c.cfg.Generation.MaxOutputTokens,
		},
	}

	respBody, err := c.post(ctx, url, body, nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// post sends a JSON body and returns the raw response body, treating any
// non-200 status as an error.
func (c *HTTPClient) post(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", httpResp.StatusCode, string(respBody))
	}
	return respBody, nil
}
