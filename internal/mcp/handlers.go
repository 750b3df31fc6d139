package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"xhs-scout/internal/app"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/extract"
	"xhs-scout/internal/report"
	"xhs-scout/internal/session"
)

// Engine - операции, которые публикуются инструментами.
type Engine interface {
	Login(ctx context.Context) (session.LoginResult, error)
	ResetLogin(ctx context.Context) error
	SearchNotes(ctx context.Context, keyword string, limit int) (*app.SearchReport, error)
	SmartSearchNotes(ctx context.Context, task string, limit int) (*app.SearchReport, error)
	DeepSearchAndAnalyze(ctx context.Context, task string, analyze bool, limit int) (*app.DeepReport, error)
	GetNoteContent(ctx context.Context, rawURL string) (*extract.Note, error)
	AnalyzeNote(ctx context.Context, rawURL string) (*app.Analysis, error)
	GetNoteComments(ctx context.Context, rawURL string) ([]extract.Comment, error)
	PostSmartComment(ctx context.Context, rawURL, commentType string) (*app.SmartComment, error)
	PostComment(ctx context.Context, rawURL, text string) error
}

type Handlers struct {
	svc Engine
}

func NewHandlers(svc Engine) *Handlers {
	return &Handlers{svc: svc}
}

// Аргументы инструментов

type SearchRequest struct {
	Keyword string `json:"keyword"`
	Limit   int    `json:"limit,omitempty"`
}

type DeepSearchRequest struct {
	TaskDescription string `json:"task_description"`
	AnalyzeContent  *bool  `json:"analyze_content,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

type NoteRequest struct {
	URL string `json:"url"`
}

type SmartCommentRequest struct {
	URL         string `json:"url"`
	CommentType string `json:"comment_type,omitempty"`
}

type PostCommentRequest struct {
	URL         string `json:"url"`
	CommentText string `json:"comment_text"`
}

func (h *Handlers) HandleLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.svc.Login(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(report.Login(res)), nil
}

func (h *Handlers) HandleResetLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.svc.ResetLogin(ctx); err != nil {
		return errorResult(err), nil
	}
	return textResult(report.ResetLogin()), nil
}

func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errs.NewInvalidRequest(err.Error())), nil
	}
	r, err := h.svc.SearchNotes(ctx, input.Keyword, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(report.Search(r)), nil
}

func (h *Handlers) HandleSmartSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errs.NewInvalidRequest(err.Error())), nil
	}
	r, err := h.svc.SmartSearchNotes(ctx, input.Keyword, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(report.SmartSearch(r)), nil
}

func (h *Handlers) HandleDeepSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeepSearchRequest](req)
	if err != nil {
		return errorResult(errs.NewInvalidRequest(err.Error())), nil
	}
	analyze := true
	if input.AnalyzeContent != nil {
		analyze = *input.AnalyzeContent
	}
	d, err := h.svc.DeepSearchAndAnalyze(ctx, input.TaskDescription, analyze, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(report.Deep(d)), nil
}

func (h *Handlers) HandleNoteContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeNote(req)
	if err != nil {
		return errorResult(err), nil
	}
	note, err := h.svc.GetNoteContent(ctx, input.URL)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(report.Note(note)), nil
}

func (h *Handlers) HandleAnalyzeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeNote(req)
	if err != nil {
		return errorResult(err), nil
	}
	a, err := h.svc.AnalyzeNote(ctx, input.URL)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(report.Analysis(a)), nil
}

func (h *Handlers) HandleNoteComments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeNote(req)
	if err != nil {
		return errorResult(err), nil
	}
	comments, err := h.svc.GetNoteComments(ctx, input.URL)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(report.Comments(input.URL, comments)), nil
}

func (h *Handlers) HandleSmartComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SmartCommentRequest](req)
	if err != nil {
		return errorResult(errs.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.URL) == "" {
		return errorResult(errs.NewInvalidRequest("url is required")), nil
	}
	sc, err := h.svc.PostSmartComment(ctx, input.URL, input.CommentType)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(report.SmartComment(sc)), nil
}

func (h *Handlers) HandlePostComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PostCommentRequest](req)
	if err != nil {
		return errorResult(errs.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.URL) == "" {
		return errorResult(errs.NewInvalidRequest("url is required")), nil
	}
	if err := h.svc.PostComment(ctx, input.URL, input.CommentText); err != nil {
		return errorResult(err), nil
	}
	return textResult(report.Posted(input.URL, strings.TrimSpace(input.CommentText))), nil
}

func decodeNote(req mcp.CallToolRequest) (NoteRequest, error) {
	input, err := decode[NoteRequest](req)
	if err != nil {
		return input, errs.NewInvalidRequest(err.Error())
	}
	if strings.TrimSpace(input.URL) == "" {
		return input, errs.NewInvalidRequest("url is required")
	}
	return input, nil
}

// errorResult - IsError: true, чтобы клиент видел сбой; текст с кодом и пояснением.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: report.Error(err)}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}
