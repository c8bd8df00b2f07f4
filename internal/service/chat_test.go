package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"docuchat/internal/document"
	"docuchat/internal/llm"
)

type fakeRetriever struct {
	chunks []document.Chunk
	err    error
	calls  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string) ([]document.Chunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakeModel struct {
	reply      string
	err        error
	lastSystem string
	lastMsgs   []llm.Message
}

func (f *fakeModel) Chat(_ context.Context, system string, messages []llm.Message) (string, error) {
	f.lastSystem = system
	f.lastMsgs = messages
	return f.reply, f.err
}

func TestProcessChat(t *testing.T) {
	retriever := &fakeRetriever{chunks: []document.Chunk{
		{ID: "a.txt_1", Text: "relevant passage", Metadata: map[string]any{document.MetaSource: "a.txt"}},
	}}
	model := &fakeModel{reply: "the answer"}
	svc := NewChatService(retriever, model, 10)

	resp, err := svc.ProcessChat(context.Background(), ChatRequest{Message: "a question"})
	if err != nil {
		t.Fatalf("ProcessChat() error = %v", err)
	}
	if resp.Reply != "the answer" {
		t.Errorf("Reply = %q", resp.Reply)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Text != "relevant passage" {
		t.Errorf("Sources = %+v", resp.Sources)
	}
	if !strings.Contains(model.lastSystem, "<doc>\nrelevant passage\n</doc>") {
		t.Errorf("system prompt missing doc block: %q", model.lastSystem)
	}
	if len(model.lastMsgs) != 1 || model.lastMsgs[0].Content != "a question" {
		t.Errorf("messages = %+v", model.lastMsgs)
	}
}

func TestProcessChatEmptyMessage(t *testing.T) {
	svc := NewChatService(&fakeRetriever{}, &fakeModel{}, 10)

	_, err := svc.ProcessChat(context.Background(), ChatRequest{Message: "   "})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("ProcessChat() error = %v, want ValidationError", err)
	}
	if validationErr.Field != "message" {
		t.Errorf("Field = %q, want message", validationErr.Field)
	}
}

func TestProcessChatRetrievalFailure(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("index offline")}
	svc := NewChatService(retriever, &fakeModel{}, 10)

	_, err := svc.ProcessChat(context.Background(), ChatRequest{Message: "q"})
	if err == nil || !strings.Contains(err.Error(), "failed to retrieve context") {
		t.Errorf("ProcessChat() error = %v", err)
	}
}

func TestProcessChatModelFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("rate limited")}
	svc := NewChatService(&fakeRetriever{}, model, 10)

	_, err := svc.ProcessChat(context.Background(), ChatRequest{Message: "q"})
	if err == nil || !strings.Contains(err.Error(), "failed to get chat model response") {
		t.Errorf("ProcessChat() error = %v", err)
	}
}

func TestHistoryCarriesAcrossTurns(t *testing.T) {
	model := &fakeModel{reply: "reply"}
	svc := NewChatService(&fakeRetriever{}, model, 10)
	ctx := context.Background()

	if _, err := svc.ProcessChat(ctx, ChatRequest{SessionID: "s1", Message: "first"}); err != nil {
		t.Fatalf("ProcessChat() error = %v", err)
	}
	if _, err := svc.ProcessChat(ctx, ChatRequest{SessionID: "s1", Message: "second"}); err != nil {
		t.Fatalf("ProcessChat() error = %v", err)
	}

	// Second call sees first turn plus the new user message.
	if len(model.lastMsgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(model.lastMsgs))
	}
	if model.lastMsgs[0].Content != "first" || model.lastMsgs[1].Content != "reply" {
		t.Errorf("history = %+v", model.lastMsgs)
	}
}

func TestHistoryEvictsOldestBeyondMaxTurns(t *testing.T) {
	model := &fakeModel{reply: "r"}
	svc := NewChatService(&fakeRetriever{}, model, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		req := ChatRequest{SessionID: "s", Message: fmt.Sprintf("message %d", i)}
		if _, err := svc.ProcessChat(ctx, req); err != nil {
			t.Fatalf("ProcessChat() error = %v", err)
		}
	}

	// 2 kept turns (4 messages) plus the in-flight user message.
	if len(model.lastMsgs) != 5 {
		t.Fatalf("messages = %d, want 5", len(model.lastMsgs))
	}
	if model.lastMsgs[0].Content != "message 1" {
		t.Errorf("oldest surviving message = %q, want message 1", model.lastMsgs[0].Content)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	model := &fakeModel{reply: "r"}
	svc := NewChatService(&fakeRetriever{}, model, 10)
	ctx := context.Background()

	if _, err := svc.ProcessChat(ctx, ChatRequest{SessionID: "a", Message: "from a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessChat(ctx, ChatRequest{SessionID: "b", Message: "from b"}); err != nil {
		t.Fatal(err)
	}

	if len(model.lastMsgs) != 1 {
		t.Errorf("session b saw %d messages, want 1", len(model.lastMsgs))
	}
}

func TestClearSession(t *testing.T) {
	model := &fakeModel{reply: "r"}
	svc := NewChatService(&fakeRetriever{}, model, 10)
	ctx := context.Background()

	if _, err := svc.ProcessChat(ctx, ChatRequest{SessionID: "s", Message: "first"}); err != nil {
		t.Fatal(err)
	}
	svc.ClearSession("s")
	if _, err := svc.ProcessChat(ctx, ChatRequest{SessionID: "s", Message: "fresh"}); err != nil {
		t.Fatal(err)
	}

	if len(model.lastMsgs) != 1 {
		t.Errorf("cleared session saw %d messages, want 1", len(model.lastMsgs))
	}
}
