// Package mcp exposes the agenda client as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hyperengineering/agenda"
)

// Server wraps the MCP server with agenda tools.
type Server struct {
	client    *agenda.Client
	mcpServer *server.MCPServer
	notes     *NoteRefs
	now       func() time.Time
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{Name: "agenda_bookmark", Description: "Bookmark a conference session or track for a year"},
	{Name: "agenda_unbookmark", Description: "Remove a bookmark from a session or track"},
	{Name: "agenda_note", Description: "Add, edit or delete a note on a session"},
	{Name: "agenda_list", Description: "List bookmarks and notes"},
	{Name: "agenda_sync", Description: "Upload pending changes to the agenda server, or pull the server's records"},
	{Name: "agenda_conflicts", Description: "Find sessions in a schedule that overlap on the same day"},
}

// NewServer creates a new MCP server with agenda tools registered.
func NewServer(client *agenda.Client) *Server {
	s := &Server{
		client: client,
		notes:  NewNoteRefs(),
		now:    time.Now,
	}

	s.mcpServer = server.NewMCPServer(
		"agenda",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Run serves MCP over stdin and stdout until stdin closes.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool executes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "agenda_bookmark":
		return s.handleBookmark(ctx, args)
	case "agenda_unbookmark":
		return s.handleUnbookmark(ctx, args)
	case "agenda_note":
		return s.handleNote(ctx, args)
	case "agenda_list":
		return s.handleList(ctx, args)
	case "agenda_sync":
		return s.handleSync(ctx, args)
	case "agenda_conflicts":
		return s.handleConflicts(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	yearParam := mcp.WithNumber("year",
		mcp.Description("Conference year (default: current year)"),
	)

	s.mcpServer.AddTool(mcp.NewTool("agenda_bookmark",
		mcp.WithDescription("Bookmark a conference session or track. Saved locally and uploaded on the next sync."),
		mcp.WithString("slug",
			mcp.Description("Session or track slug"),
			mcp.Required(),
		),
		yearParam,
		mcp.WithString("kind",
			mcp.Description("What the slug names: event or track (default: event)"),
			mcp.Enum(string(agenda.KindEvent), string(agenda.KindTrack)),
		),
	), s.wrap(s.handleBookmark))

	s.mcpServer.AddTool(mcp.NewTool("agenda_unbookmark",
		mcp.WithDescription("Remove a bookmark. The removal is uploaded on the next sync."),
		mcp.WithString("slug",
			mcp.Description("Session or track slug"),
			mcp.Required(),
		),
		yearParam,
	), s.wrap(s.handleUnbookmark))

	s.mcpServer.AddTool(mcp.NewTool("agenda_note",
		mcp.WithDescription("Add, edit or delete a session note. Notes listed by agenda_list carry references (N1, N2, ...) usable as the note parameter."),
		mcp.WithString("action",
			mcp.Description("add, edit or delete (default: add)"),
			mcp.Enum("add", "edit", "delete"),
		),
		mcp.WithString("slug",
			mcp.Description("Session slug (required for add)"),
		),
		yearParam,
		mcp.WithString("note",
			mcp.Description("Note reference or ID (required for edit and delete)"),
		),
		mcp.WithString("text",
			mcp.Description("Note text, markdown allowed (required for add and edit)"),
		),
		mcp.WithNumber("time_offset",
			mcp.Description("Position in the session recording, in seconds"),
		),
	), s.wrap(s.handleNote))

	s.mcpServer.AddTool(mcp.NewTool("agenda_list",
		mcp.WithDescription("List bookmarks and notes for a year, or every year when year is 0."),
		mcp.WithString("what",
			mcp.Description("bookmarks, notes or all (default: all)"),
			mcp.Enum("bookmarks", "notes", "all"),
		),
		yearParam,
		mcp.WithString("slug",
			mcp.Description("Only notes for this session"),
		),
	), s.wrap(s.handleList))

	s.mcpServer.AddTool(mcp.NewTool("agenda_sync",
		mcp.WithDescription("Synchronize with the agenda server. Requires AGENDA_SERVER_URL and AGENDA_API_KEY."),
		mcp.WithString("direction",
			mcp.Description("push uploads pending changes, pull downloads the server's records (default: push)"),
			mcp.Enum("push", "pull"),
		),
		mcp.WithNumber("year",
			mcp.Description("Year to pull (default: every year)"),
		),
	), s.wrap(s.handleSync))

	s.mcpServer.AddTool(mcp.NewTool("agenda_conflicts",
		mcp.WithDescription("Report pairs of sessions that overlap on a shared day. Times are HH:MM wall-clock values."),
		mcp.WithArray("items",
			mcp.Description("Schedule items: {id, title, days, start_time, duration}. days holds ISO dates, MM-DD or day numbers."),
			mcp.Required(),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithNumber("year",
			mcp.Description("Reference year for MM-DD and day numbers (default: current year)"),
		),
		mcp.WithBoolean("bookmarked",
			mcp.Description("Only consider items whose id is a bookmarked slug"),
		),
	), s.wrap(s.handleConflicts))
}

type handler func(ctx context.Context, args map[string]any) (*ToolResult, error)

func (s *Server) wrap(h handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: r.Content},
		},
		IsError: r.IsError,
	}
}

func errorResult(format string, args ...any) *ToolResult {
	return &ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

func (s *Server) handleBookmark(ctx context.Context, args map[string]any) (*ToolResult, error) {
	slug, _ := args["slug"].(string)
	if slug == "" {
		return errorResult("slug is required"), nil
	}
	kind := agenda.KindEvent
	if k, ok := args["kind"].(string); ok && k != "" {
		kind = agenda.BookmarkKind(k)
	}

	b, err := s.client.Bookmark(ctx, s.year(args), slug, kind)
	if err != nil {
		return errorResult("bookmark failed: %v", err), nil
	}
	return &ToolResult{Content: fmt.Sprintf("Bookmarked %s %s (%d) [%s]", b.Kind, b.Slug, b.Year, syncState(b.ExistsOnServer))}, nil
}

func (s *Server) handleUnbookmark(ctx context.Context, args map[string]any) (*ToolResult, error) {
	slug, _ := args["slug"].(string)
	if slug == "" {
		return errorResult("slug is required"), nil
	}

	b, err := s.client.Unbookmark(ctx, s.year(args), slug)
	if errors.Is(err, agenda.ErrNotFound) {
		return errorResult("no bookmark for %s", slug), nil
	}
	if err != nil {
		return errorResult("unbookmark failed: %v", err), nil
	}
	return &ToolResult{Content: fmt.Sprintf("Removed bookmark %s (%d)", b.Slug, b.Year)}, nil
}

func (s *Server) handleNote(ctx context.Context, args map[string]any) (*ToolResult, error) {
	action, _ := args["action"].(string)
	if action == "" {
		action = "add"
	}
	text, _ := args["text"].(string)
	ref, _ := args["note"].(string)

	var offset *int
	if v, ok := args["time_offset"].(float64); ok {
		o := int(v)
		offset = &o
	}

	switch action {
	case "add":
		slug, _ := args["slug"].(string)
		if slug == "" {
			return errorResult("slug is required"), nil
		}
		n, err := s.client.AddNote(ctx, s.year(args), slug, text, offset)
		if err != nil {
			return errorResult("add note failed: %v", err), nil
		}
		return &ToolResult{Content: fmt.Sprintf("Added note [%s] to %s (%d)", s.notes.Track(n.ID), n.Slug, n.Year)}, nil

	case "edit":
		if ref == "" {
			return errorResult("note is required"), nil
		}
		id, _ := s.notes.Resolve(ref)
		n, err := s.client.EditNote(ctx, id, text, offset)
		if err != nil {
			return errorResult("edit note failed: %v", err), nil
		}
		return &ToolResult{Content: fmt.Sprintf("Updated note [%s]", s.notes.Track(n.ID))}, nil

	case "delete":
		if ref == "" {
			return errorResult("note is required"), nil
		}
		id, _ := s.notes.Resolve(ref)
		if err := s.client.DeleteNote(ctx, id); err != nil {
			return errorResult("delete note failed: %v", err), nil
		}
		s.notes.Forget(id)
		return &ToolResult{Content: fmt.Sprintf("Deleted note %s", ref)}, nil

	default:
		return errorResult("unknown action %q: use add, edit or delete", action), nil
	}
}

func (s *Server) handleList(ctx context.Context, args map[string]any) (*ToolResult, error) {
	what, _ := args["what"].(string)
	if what == "" {
		what = "all"
	}
	year := s.now().Year()
	if v, ok := args["year"].(float64); ok {
		year = int(v)
	}
	slug, _ := args["slug"].(string)

	var sb strings.Builder
	if what == "bookmarks" || what == "all" {
		bookmarks, err := s.client.Bookmarks(ctx, year)
		if err != nil {
			return errorResult("list bookmarks failed: %v", err), nil
		}
		fmt.Fprintf(&sb, "Bookmarks (%d):\n", len(bookmarks))
		for _, b := range bookmarks {
			fmt.Fprintf(&sb, "  - %d %s (%s) [%s]\n", b.Year, b.Slug, b.Kind, syncState(b.ExistsOnServer))
		}
	}
	if what == "notes" || what == "all" {
		notes, err := s.client.Notes(ctx, year, slug)
		if err != nil {
			return errorResult("list notes failed: %v", err), nil
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Notes (%d):\n", len(notes))
		for _, n := range notes {
			fmt.Fprintf(&sb, "  [%s] %d %s [%s]\n", s.notes.Track(n.ID), n.Year, n.Slug, syncState(n.ExistsOnServer))
			fmt.Fprintf(&sb, "      %s\n", truncate(n.Text, 200))
		}
	}
	if sb.Len() == 0 {
		return errorResult("unknown list %q: use bookmarks, notes or all", what), nil
	}
	return &ToolResult{Content: strings.TrimRight(sb.String(), "\n")}, nil
}

func (s *Server) handleSync(ctx context.Context, args map[string]any) (*ToolResult, error) {
	direction, _ := args["direction"].(string)

	if direction == "pull" {
		year := 0
		if v, ok := args["year"].(float64); ok {
			year = int(v)
		}
		r, err := s.client.Refresh(ctx, year)
		if err != nil {
			return errorResult("pull failed: %v", err), nil
		}
		return &ToolResult{Content: fmt.Sprintf(
			"Pulled from server:\n  Bookmarks: %d created, %d updated, %d held\n  Notes: %d created, %d updated, %d held",
			r.Bookmarks.Created, r.Bookmarks.Updated, r.Bookmarks.Held,
			r.Notes.Created, r.Notes.Updated, r.Notes.Held,
		)}, nil
	}

	report, err := s.client.Sync(ctx)
	if report == nil {
		return errorResult("sync failed: %v", err), nil
	}

	var sb strings.Builder
	writeCategory(&sb, "Bookmarks", report.Bookmarks)
	writeCategory(&sb, "Notes", report.Notes)
	if err != nil {
		fmt.Fprintf(&sb, "Error: %v\n", err)
	}
	return &ToolResult{Content: strings.TrimRight(sb.String(), "\n"), IsError: err != nil || !report.OK()}, nil
}

func writeCategory(sb *strings.Builder, name string, r agenda.SyncResult) {
	fmt.Fprintf(sb, "%s: %d synced", name, r.SyncedCount)
	if len(r.Errors) > 0 {
		fmt.Fprintf(sb, ", %d failed", len(r.Errors))
	}
	sb.WriteString("\n")
	for _, e := range r.Errors {
		fmt.Fprintf(sb, "  - %s\n", e)
	}
}

func (s *Server) handleConflicts(ctx context.Context, args map[string]any) (*ToolResult, error) {
	raw, ok := args["items"]
	if !ok {
		return errorResult("items is required"), nil
	}
	items, err := decodeItems(raw)
	if err != nil {
		return errorResult("invalid items: %v", err), nil
	}

	year := s.year(args)
	if only, _ := args["bookmarked"].(bool); only {
		bookmarks, err := s.client.Bookmarks(ctx, year)
		if err != nil {
			return errorResult("list bookmarks failed: %v", err), nil
		}
		wanted := make(map[string]bool, len(bookmarks))
		for _, b := range bookmarks {
			wanted[b.Slug] = true
		}
		kept := items[:0]
		for _, item := range items {
			if wanted[item.ID] {
				kept = append(kept, item)
			}
		}
		items = kept
	}

	conflicts := agenda.DetectConflicts(items, year)
	if len(conflicts) == 0 {
		return &ToolResult{Content: fmt.Sprintf("No conflicts among %d items.", len(items))}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d conflicts:\n", len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(&sb, "  - %s %s-%s (%d min): %s / %s\n",
			c.Day, c.OverlapStart.Format("15:04"), c.OverlapEnd.Format("15:04"),
			c.OverlapMinutes, label(c.First), label(c.Second))
	}
	return &ToolResult{Content: strings.TrimRight(sb.String(), "\n")}, nil
}

// decodeItems converts loosely typed tool arguments into schedule items.
func decodeItems(raw any) ([]agenda.ScheduledItem, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var items []agenda.ScheduledItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// year returns the "year" argument, defaulting to the current year.
func (s *Server) year(args map[string]any) int {
	if v, ok := args["year"].(float64); ok && v > 0 {
		return int(v)
	}
	return s.now().Year()
}

func label(item agenda.ScheduledItem) string {
	if item.Title != "" {
		return item.Title
	}
	return item.ID
}

func syncState(onServer bool) string {
	if onServer {
		return "synced"
	}
	return "pending"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
