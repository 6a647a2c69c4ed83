package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ashureev/campaign-consult/internal/consult"
	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/session"
)

func newTestHandlers(t *testing.T) (*Handlers, *consult.Service) {
	t.Helper()
	svc := consult.NewService(consult.ServiceConfig{
		Sessions: session.NewManager(session.Config{Progress: consult.Completion}),
	})
	return NewHandlers(svc), svc
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", r.Content[0])
	}
	return tc.Text
}

func decodeOutcome(t *testing.T, r *mcp.CallToolResult) consult.Outcome {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(t, r))
	}
	var out consult.Outcome
	if err := json.Unmarshal([]byte(resultText(t, r)), &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	return out
}

func errorCode(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if !r.IsError {
		t.Fatalf("expected an error result, got %s", resultText(t, r))
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(resultText(t, r)), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload.Error.Code
}

func TestConsultationTools(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	ctx := context.Background()

	res, err := h.HandleStart(ctx, makeRequest(map[string]any{"message": "promote my coffee shop"}))
	if err != nil {
		t.Fatalf("HandleStart() error = %v", err)
	}
	out := decodeOutcome(t, res)
	if out.NextQuestion == nil {
		t.Fatal("no first question")
	}
	id := out.SessionID

	res, err = h.HandleStatus(ctx, makeRequest(map[string]any{"session_id": id}))
	if err != nil {
		t.Fatalf("HandleStatus() error = %v", err)
	}
	if diff := cmp.Diff(out.NextQuestion, decodeOutcome(t, res).NextQuestion); diff != "" {
		t.Errorf("status question mismatch (-start +status):\n%s", diff)
	}

	answers := []string{
		"artisan espresso bar downtown",
		"young professionals aged 25-35 who love specialty coffee",
		"around $2000 per month",
		"instagram and email",
	}
	for i, a := range answers {
		res, err = h.HandleReply(ctx, makeRequest(map[string]any{"session_id": id, "answer": a}))
		if err != nil {
			t.Fatalf("HandleReply(%d) error = %v", i, err)
		}
		out = decodeOutcome(t, res)
	}
	if out.Stage != domain.StageCompleted {
		t.Fatalf("stage = %s, want completed", out.Stage)
	}

	res, err = h.HandleSummary(ctx, makeRequest(map[string]any{"session_id": id}))
	if err != nil {
		t.Fatalf("HandleSummary() error = %v", err)
	}
	var sum SummaryOutput
	if err := json.Unmarshal([]byte(resultText(t, res)), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.SessionID != id || sum.Markdown == "" {
		t.Errorf("summary = %+v", sum)
	}
}

func TestReplyIdempotencyKey(t *testing.T) {
	t.Parallel()
	h, svc := newTestHandlers(t)

	start := decodeOutcome(t, mustCall(t, h.HandleStart, map[string]any{"message": "promote my coffee shop"}))
	args := map[string]any{"session_id": start.SessionID, "answer": "artisan espresso bar downtown", "idempotency_key": "k1"}
	first := decodeOutcome(t, mustCall(t, h.HandleReply, args))
	again := decodeOutcome(t, mustCall(t, h.HandleReply, args))
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("replay differs (-first +again):\n%s", diff)
	}

	sess, err := svc.Session(start.SessionID)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if got := len(sess.Answered()); got != 1 {
		t.Errorf("answered turns = %d, want 1", got)
	}
}

func mustCall(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := fn(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("tool call error = %v", err)
	}
	return res
}

func TestToolErrors(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)

	tests := []struct {
		name     string
		fn       func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args     map[string]any
		wantCode string
	}{
		{"empty message", h.HandleStart, map[string]any{"message": ""}, "INVALID_REQUEST"},
		{"message wrong type", h.HandleStart, map[string]any{"message": 42}, "INVALID_REQUEST"},
		{"reply without session", h.HandleReply, map[string]any{"answer": "hi"}, "INVALID_REQUEST"},
		{"reply without answer", h.HandleReply, map[string]any{"session_id": "consultation_x"}, "INVALID_REQUEST"},
		{"reply unknown session", h.HandleReply, map[string]any{"session_id": "consultation_x", "answer": "hi"}, "NOT_FOUND"},
		{"status unknown session", h.HandleStatus, map[string]any{"session_id": "consultation_x"}, "NOT_FOUND"},
		{"summary without session", h.HandleSummary, map[string]any{}, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := errorCode(t, mustCall(t, tt.fn, tt.args)); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestServerListsTools(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	s := NewServer(h.svc, "test")

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := s.HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var list struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	var got []string
	for _, tool := range list.Result.Tools {
		got = append(got, tool.Name)
	}
	sort.Strings(got)
	if diff := cmp.Diff(ToolNames(), got); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}
}
