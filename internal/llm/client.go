// Package llm talks to text-completion providers over HTTP and wraps the
// calls in the bounded retry policy the rest of the engine relies on.
package llm

import (
	"context"
	"fmt"
)

// Role identifies who produced a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat history.
type Message struct {
	Role Role
	Text string
}

// Client is the opaque text-completion capability. Generate performs a single
// prompt/response round trip; Chat sends a full message history where the
// last message is the pending user turn. Neither retries — that is
// RetryClient's job.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, history []Message) (string, error)
}

// Session is a stateful chat over a Client. Histories accumulate, so each
// Send carries the full conversation.
type Session struct {
	client  Client
	history []Message
}

// StartChat opens a chat session seeded with prior history.
func StartChat(client Client, history []Message) *Session {
	h := make([]Message, len(history))
	copy(h, history)
	return &Session{client: client, history: h}
}

// Send appends the user message, performs the round trip, and records the
// assistant reply in the history. On error the user turn is not recorded,
// so the caller can retry the same message.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	attempt := append(append([]Message{}, s.history...), Message{Role: RoleUser, Text: message})
	reply, err := s.client.Chat(ctx, attempt)
	if err != nil {
		return "", fmt.Errorf("chat send: %w", err)
	}
	s.history = append(attempt, Message{Role: RoleAssistant, Text: reply})
	return reply, nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}
