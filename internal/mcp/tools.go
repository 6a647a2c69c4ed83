package mcp

import "github.com/mark3labs/mcp-go/mcp"

var startToolDef = mcp.NewTool("consultation_start",
	mcp.WithDescription("Start a marketing campaign consultation from a free-form request. Returns the session id and the first clarifying question."),
	mcp.WithString("message",
		mcp.Required(),
		mcp.Description("The marketing request, e.g. \"promote my coffee shop\""),
	),
)

var replyToolDef = mcp.NewTool("consultation_reply",
	mcp.WithDescription("Answer the open question of a consultation. Returns the next question, or the finalized brief once the consultation completes."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Consultation id returned by consultation_start"),
	),
	mcp.WithString("answer",
		mcp.Required(),
		mcp.Description("The user's answer; may be empty"),
	),
	mcp.WithString("idempotency_key",
		mcp.Description("Repeat a call with the same key to get the first result back without re-applying the answer"),
	),
)

var statusToolDef = mcp.NewTool("consultation_status",
	mcp.WithDescription("Describe a consultation without changing it: stage, progress and the open question."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Consultation id"),
	),
)

var summaryToolDef = mcp.NewTool("consultation_summary",
	mcp.WithDescription("Return the markdown campaign brief gathered so far, or the final one once completed."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Consultation id"),
	),
)
