package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reminder-agent/internal/logger"
	"reminder-agent/internal/manager"
	"reminder-agent/internal/reminder"
	"reminder-agent/internal/storage"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "reminder-agent"
	serverVersion = "1.0.0"
)

// Status filters for list_reminders.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Server exposes the reminder manager as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	manager   *manager.Manager
}

func NewServer(m *manager.Manager) *Server {
	s := &Server{
		manager: m,
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// HTTPHandler serves the tools over the streamable HTTP transport.
func (s *Server) HTTPHandler() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

func (s *Server) registerTools() {
	// add_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Add a new reminder. Times in the past are moved to the next minute."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
			mcp.WithString("due_date", mcp.Required(), mcp.Description("Due date in RFC3339 format (e.g. 2025-01-15T09:00:00Z)")),
		),
		s.handleAddReminder,
	)

	// list_reminders
	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List all reminders ordered by due date, optionally filtered by status"),
			mcp.WithString("status", mcp.Description("Filter by status: pending, completed, or empty for all")),
		),
		s.handleListReminders,
	)

	// get_due_reminders
	s.mcpServer.AddTool(
		mcp.NewTool("get_due_reminders",
			mcp.WithDescription("Get all open reminders that are due now or overdue"),
		),
		s.handleGetDueReminders,
	)

	// complete_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Mark a reminder as done"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCompleteReminder,
	)

	// delete_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder permanently"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleDeleteReminder,
	)

	// update_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("update_reminder",
			mcp.WithDescription("Update a reminder's title, due date or done flag. Changing title or due date reopens it."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("due_date", mcp.Description("New due date in RFC3339 format")),
			mcp.WithBoolean("done", mcp.Description("Mark done (true) or reopen (false)")),
		),
		s.handleUpdateReminder,
	)
}

func (s *Server) handleAddReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	dueDateStr := req.GetString("due_date", "")

	if dueDateStr == "" {
		return mcp.NewToolResultError("due_date is required"), nil
	}
	dueDate, err := time.Parse(time.RFC3339, dueDateStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid due_date format: %v (use RFC3339, e.g. 2025-01-15T09:00:00Z)", err)), nil
	}

	added, err := s.manager.Add(ctx, title, dueDate)
	if err != nil {
		return toolError(ctx, "add", err), nil
	}
	return jsonResult(added), nil
}

func (s *Server) handleListReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")
	if status != "" && status != StatusPending && status != StatusCompleted {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status %q (use pending or completed)", status)), nil
	}

	list, err := s.manager.List(ctx)
	if err != nil {
		return toolError(ctx, "list", err), nil
	}

	filtered := make([]*reminder.Reminder, 0, len(list))
	for _, r := range list {
		switch {
		case status == StatusPending && r.Done:
		case status == StatusCompleted && !r.Done:
		default:
			filtered = append(filtered, r)
		}
	}

	if len(filtered) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}
	return jsonResult(filtered), nil
}

func (s *Server) handleGetDueReminders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.manager.Due(ctx)
	if err != nil {
		return toolError(ctx, "get due", err), nil
	}

	if len(list) == 0 {
		return mcp.NewToolResultText("No due reminders."), nil
	}
	return jsonResult(list), nil
}

func (s *Server) handleCompleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if _, err := s.manager.SetDone(ctx, id, true); err != nil {
		return toolError(ctx, "complete", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s marked as done.", id)), nil
}

func (s *Server) handleDeleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := s.manager.Delete(ctx, id); err != nil {
		return toolError(ctx, "delete", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s deleted.", id)), nil
}

func (s *Server) handleUpdateReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	current, err := s.manager.Get(ctx, id)
	if err != nil {
		return toolError(ctx, "update", err), nil
	}

	title := req.GetString("title", "")
	dueDateStr := req.GetString("due_date", "")
	updated := current

	if title != "" || dueDateStr != "" {
		if title == "" {
			title = current.Title
		}
		due := current.Due()
		if dueDateStr != "" {
			due, err = time.Parse(time.RFC3339, dueDateStr)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid due_date: %v", err)), nil
			}
		}
		updated, err = s.manager.Edit(ctx, id, title, due)
		if err != nil {
			return toolError(ctx, "update", err), nil
		}
	}

	if done, ok := req.GetArguments()["done"].(bool); ok {
		updated, err = s.manager.SetDone(ctx, id, done)
		if err != nil {
			return toolError(ctx, "update", err), nil
		}
	}
	return jsonResult(updated), nil
}

// toolError turns a manager error into a tool-level error result. Only
// unexpected failures are logged.
func toolError(ctx context.Context, op string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return mcp.NewToolResultError("reminder not found")
	case errors.Is(err, manager.ErrTitleRequired), errors.Is(err, manager.ErrOutOfRange):
		return mcp.NewToolResultError(err.Error())
	}
	logger.Error(ctx, "MCP tool failed", "op", op, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s reminder: %v", op, err))
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	output, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(output))
}
