// Package mcp exposes consultations as Model Context Protocol tools.
package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ashureev/campaign-consult/internal/consult"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"consultation_start": {
		def:     startToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStart },
	},
	"consultation_reply": {
		def:     replyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReply },
	},
	"consultation_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"consultation_summary": {
		def:     summaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummary },
	},
}

// ToolNames returns the registered tool names in order.
func ToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer creates an MCP server with the consultation tools registered.
func NewServer(svc *consult.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"campaign-consult",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(svc)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(svc *consult.Service, version string) error {
	return server.ServeStdio(NewServer(svc, version))
}
