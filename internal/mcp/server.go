// Package mcp публикует операции сервиса как MCP-инструменты поверх stdio.
package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolEntry связывает описание инструмента с фабрикой обработчика.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"login_xiaohongshu": {
		def:     loginToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLogin },
	},
	"reset_login_status": {
		def:     resetLoginToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResetLogin },
	},
	"search_xiaohongshu_notes": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"smart_search_xiaohongshu_notes": {
		def:     smartSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSmartSearch },
	},
	"deep_search_and_analyze_notes": {
		def:     deepSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeepSearch },
	},
	"get_xiaohongshu_note_content": {
		def:     noteContentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteContent },
	},
	"analyze_xiaohongshu_note": {
		def:     analyzeNoteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnalyzeNote },
	},
	"get_xiaohongshu_note_comments": {
		def:     noteCommentsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteComments },
	},
	"generate_smart_comment": {
		def:     smartCommentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSmartComment },
	},
	"post_xiaohongshu_comment": {
		def:     postCommentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePostComment },
	},
}

// AllToolNames - имена всех инструментов по алфавиту.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer создаёт MCP-сервер со всеми инструментами.
func NewServer(svc Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"xhs-scout",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(svc)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run обслуживает MCP через stdio до закрытия stdin.
func Run(svc Engine, version string) error {
	return server.ServeStdio(NewServer(svc, version))
}
