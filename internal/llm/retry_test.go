package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedClient returns canned replies/errors in sequence.
type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
}

func (s *scriptedClient) next() (string, error) {
	i := s.calls
	s.calls++
	var reply string
	var err error
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return reply, err
}

func (s *scriptedClient) Generate(ctx context.Context, prompt string) (string, error) {
	return s.next()
}

func (s *scriptedClient) Chat(ctx context.Context, history []Message) (string, error) {
	return s.next()
}

func TestRetryClient_SucceedsOnThirdAttempt(t *testing.T) {
	boom := errors.New("boom")
	inner := &scriptedClient{
		replies: []string{"", "", "all good"},
		errs:    []error{boom, boom, nil},
	}
	rc := NewRetryClient(inner, 3, time.Millisecond)

	got, err := rc.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("expected success on 3rd attempt, got %v", err)
	}
	if got != "all good" {
		t.Errorf("expected 'all good', got %q", got)
	}
	if inner.calls != 3 {
		t.Errorf("expected exactly 3 calls, got %d", inner.calls)
	}
}

func TestRetryClient_FailsAfterExactlyMaxAttempts(t *testing.T) {
	boom := errors.New("boom")
	inner := &scriptedClient{errs: []error{boom, boom, boom, boom, boom}}
	rc := NewRetryClient(inner, 3, time.Millisecond)

	_, err := rc.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 3 {
		t.Errorf("expected exactly 3 calls, never 4; got %d", inner.calls)
	}

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("expected *InferenceError, got %T", err)
	}
	if infErr.Attempts != 3 {
		t.Errorf("expected Attempts=3, got %d", infErr.Attempts)
	}
	if !errors.Is(err, boom) {
		t.Error("expected the last underlying error to be wrapped")
	}
}

func TestRetryClient_EmptyResponseIsFailure(t *testing.T) {
	inner := &scriptedClient{replies: []string{"   \n\t ", "real answer"}}
	rc := NewRetryClient(inner, 3, time.Millisecond)

	got, err := rc.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("expected recovery after empty reply, got %v", err)
	}
	if got != "real answer" {
		t.Errorf("expected 'real answer', got %q", got)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 calls, got %d", inner.calls)
	}
}

func TestRetryClient_AllEmptyRaisesInferenceError(t *testing.T) {
	inner := &scriptedClient{replies: []string{"", "", ""}}
	rc := NewRetryClient(inner, 3, time.Millisecond)

	_, err := rc.Chat(context.Background(), []Message{{Role: RoleUser, Text: "hi"}})
	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("expected *InferenceError, got %v", err)
	}
	if infErr.Attempts != 3 {
		t.Errorf("expected Attempts=3, got %d", infErr.Attempts)
	}
}

func TestRetryClient_ContextCancelStopsRetrying(t *testing.T) {
	boom := errors.New("boom")
	inner := &scriptedClient{errs: []error{boom, boom, boom}}
	rc := NewRetryClient(inner, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rc.Generate(ctx, "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call before cancellation stops the loop, got %d", inner.calls)
	}
}

func TestSession_AccumulatesHistory(t *testing.T) {
	inner := &scriptedClient{replies: []string{"hello there", "second reply"}}
	sess := StartChat(inner, []Message{{Role: RoleAssistant, Text: "welcome"}})

	reply, err := sess.Send(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "hello there" {
		t.Errorf("expected 'hello there', got %q", reply)
	}

	if _, err := sess.Send(context.Background(), "more"); err != nil {
		t.Fatalf("Send 2: %v", err)
	}

	h := sess.History()
	// welcome, hi, hello there, more, second reply
	if len(h) != 5 {
		t.Fatalf("expected 5 history entries, got %d", len(h))
	}
	if h[0].Role != RoleAssistant || h[4].Text != "second reply" {
		t.Errorf("unexpected history: %+v", h)
	}
}

func TestSession_ErrorDoesNotRecordTurn(t *testing.T) {
	inner := &scriptedClient{errs: []error{errors.New("down")}}
	sess := StartChat(inner, nil)

	if _, err := sess.Send(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	if len(sess.History()) != 0 {
		t.Errorf("failed turn must not be recorded, history has %d entries", len(sess.History()))
	}
}
