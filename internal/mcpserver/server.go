// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Lectern tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lecternlabs/lectern/internal/projectsvc"
)

// Server wraps the MCP server with Lectern tools.
type Server struct {
	mcp *server.MCPServer
	svc *projectsvc.Service
}

// New creates a new MCP server with all Lectern tools registered.
func New(svc *projectsvc.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Lectern",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all presentation projects with page counts."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read one page of a project: typesetting markup, speaker script, and notes."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Zero-based page index")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search through page markup, speaker scripts, and notes. "+
			"Password-protected projects are never searchable."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("project", mcp.Description("Optional project name to scope the search")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("resource_usage",
		mcp.WithDescription("Report which pages and template sections cite each asset of a project."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	), s.resourceUsage)

	s.mcp.AddTool(mcp.NewTool("upload_attachment",
		mcp.WithDescription("Download a file from a URL (or decode a base64 data URI) and store it "+
			"as a project attachment. Returns the stored filename and an includegraphics snippet."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("url", mcp.Required(), mcp.Description("HTTP(S) URL or data: URI of the file")),
		mcp.WithString("filename", mcp.Description("Optional filename override")),
	), s.uploadAttachment)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.svc.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(metas, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pageNum, err := req.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Get(ctx, project, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot open project %s: %v", project, err)), nil
	}
	if pageNum < 0 || pageNum >= len(p.Pages) {
		return mcp.NewToolResultError(fmt.Sprintf("page %d out of range (project has %d pages)", pageNum, len(p.Pages))), nil
	}
	page := p.Pages[pageNum]

	var b strings.Builder
	fmt.Fprintf(&b, "# %s, page %d of %d\n\n", project, pageNum+1, len(p.Pages))
	fmt.Fprintf(&b, "## Content\n\n%s\n", page.Content)
	if page.Script != "" {
		fmt.Fprintf(&b, "\n## Script\n\n%s\n", page.Script)
	}
	if page.Notes != "" {
		fmt.Fprintf(&b, "\n## Notes\n\n%s\n", page.Notes)
	}
	if len(page.Bib) > 0 {
		fmt.Fprintf(&b, "\n## Bibliography\n\n%s\n", strings.Join(page.Bib, "\n\n"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	project := req.GetString("project", "")
	results, err := s.svc.Search(ctx, query, project, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resourceUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	usage, err := s.svc.ResourceUsage(ctx, project, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot open project %s: %v", project, err)), nil
	}
	out, _ := json.MarshalIndent(usage, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
