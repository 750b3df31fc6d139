package mcp

import "github.com/mark3labs/mcp-go/mcp"

var loginToolDef = mcp.NewTool("login_xiaohongshu",
	mcp.WithDescription("Open the browser with the saved profile and wait for a manual xiaohongshu login. Returns immediately when already logged in."),
)

var resetLoginToolDef = mcp.NewTool("reset_login_status",
	mcp.WithDescription("Close the browser session. The saved profile is kept; the next call starts a fresh browser."),
)

var searchToolDef = mcp.NewTool("search_xiaohongshu_notes",
	mcp.WithDescription("Search notes by keyword in page order. Results are also saved as CSV."),
	mcp.WithString("keyword", mcp.Required(), mcp.Description("Search keyword")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
)

var smartSearchToolDef = mcp.NewTool("smart_search_xiaohongshu_notes",
	mcp.WithDescription("Plan several queries from a task description, run them in rounds and rank the merged results. Saves CSV and a JSON report."),
	mcp.WithString("keyword", mcp.Required(), mcp.Description("Task description, for example 我想了解护肤技巧")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of ranked results (default 10)")),
)

var deepSearchToolDef = mcp.NewTool("deep_search_and_analyze_notes",
	mcp.WithDescription("Smart search followed by content extraction of every result with domain and keyword statistics."),
	mcp.WithString("task_description", mcp.Required(), mcp.Description("What the user wants to learn")),
	mcp.WithBoolean("analyze_content", mcp.Description("Extract and analyze each result (default true)")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
)

var noteContentToolDef = mcp.NewTool("get_xiaohongshu_note_content",
	mcp.WithDescription("Extract title, author, publish time and body of a note."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Note URL")),
)

var analyzeNoteToolDef = mcp.NewTool("analyze_xiaohongshu_note",
	mcp.WithDescription("Extract a note and return its domains and keywords."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Note URL")),
)

var noteCommentsToolDef = mcp.NewTool("get_xiaohongshu_note_comments",
	mcp.WithDescription("Read the comments of a note."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Note URL")),
)

var smartCommentToolDef = mcp.NewTool("generate_smart_comment",
	mcp.WithDescription("Prepare comment suggestions for a note. Nothing is posted."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Note URL")),
	mcp.WithString("comment_type", mcp.Description("点赞, 引流, 提问 or 分享经验 (default 点赞)")),
)

var postCommentToolDef = mcp.NewTool("post_xiaohongshu_comment",
	mcp.WithDescription("Post a comment to a note and confirm the submission."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Note URL")),
	mcp.WithString("comment_text", mcp.Required(), mcp.Description("Comment text")),
)
