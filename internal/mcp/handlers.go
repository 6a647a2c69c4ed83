package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ashureev/campaign-consult/internal/consult"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
	"github.com/ashureev/campaign-consult/internal/session"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc    *consult.Service
	client session.Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *consult.Service) *Handlers {
	return &Handlers{svc: svc, client: session.Client{Channel: "mcp"}}
}

// StartRequest represents the arguments for consultation_start.
type StartRequest struct {
	Message string `json:"message"`
}

// ReplyRequest represents the arguments for consultation_reply.
type ReplyRequest struct {
	SessionID      string  `json:"session_id"`
	Answer         *string `json:"answer"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// SessionRequest identifies a consultation.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// SummaryOutput is the result of consultation_summary.
type SummaryOutput struct {
	SessionID string `json:"session_id"`
	Markdown  string `json:"markdown"`
}

// HandleStart handles consultation_start.
func (h *Handlers) HandleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StartRequest](req)
	if err != nil {
		return errorResult(apperrors.NewInvalidRequest(err.Error())), nil
	}

	out, err := h.svc.Start(ctx, input.Message, h.client)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleReply handles consultation_reply.
func (h *Handlers) HandleReply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReplyRequest](req)
	if err != nil {
		return errorResult(apperrors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireSession(input.SessionID); err != nil {
		return errorResult(err), nil
	}
	if input.Answer == nil {
		return errorResult(apperrors.NewInvalidRequest("answer is required")), nil
	}

	out, err := h.svc.Reply(ctx, input.SessionID, *input.Answer, input.IdempotencyKey)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleStatus handles consultation_status.
func (h *Handlers) HandleStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(apperrors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireSession(input.SessionID); err != nil {
		return errorResult(err), nil
	}

	out, err := h.svc.Status(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleSummary handles consultation_summary.
func (h *Handlers) HandleSummary(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(apperrors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireSession(input.SessionID); err != nil {
		return errorResult(err), nil
	}

	md, err := h.svc.Summary(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(SummaryOutput{SessionID: input.SessionID, Markdown: md})
}

func requireSession(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewInvalidRequest("session_id is required")
	}
	return nil
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr := apperrors.As(err); cErr != nil {
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": cErr.Message,
			"status":  cErr.Status,
		}
		// Internal details may carry paths or SQL.
		if cErr.Code != apperrors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    apperrors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
