// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Hippo store operations for LLM integration via stdio
// transport.
//
// MCP runs on a trusted local channel, so tools address applications by id
// directly instead of going through token authentication.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ohinlabs/hippo/internal/docstore"
)

// Server wraps the MCP server with Hippo tools.
type Server struct {
	mcp   *server.MCPServer
	store *docstore.Store
}

// New creates a new MCP server with all Hippo tools registered.
func New(store *docstore.Store) *Server {
	s := &Server{store: store}

	s.mcp = server.NewMCPServer(
		"Hippo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_applications",
		mcp.WithDescription("List all applications in the store."),
	), s.listApplications)

	s.mcp.AddTool(mcp.NewTool("list_databases",
		mcp.WithDescription("List databases of an application under a path prefix."),
		mcp.WithString("application_id", mcp.Required(), mcp.Description("Application id")),
		mcp.WithString("prefix", mcp.Description("Path prefix to list under (defaults to /)")),
	), s.listDatabases)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List document names in a database."),
		mcp.WithString("application_id", mcp.Required(), mcp.Description("Application id")),
		mcp.WithString("database_path", mcp.Required(), mcp.Description("Database path (e.g. /settings)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a JSON document by name."),
		mcp.WithString("application_id", mcp.Required(), mcp.Description("Application id")),
		mcp.WithString("database_path", mcp.Required(), mcp.Description("Database path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document name")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("write_document",
		mcp.WithDescription("Create or replace a JSON document. Content must be a JSON object or array."),
		mcp.WithString("application_id", mcp.Required(), mcp.Description("Application id")),
		mcp.WithString("database_path", mcp.Required(), mcp.Description("Database path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Serialized JSON content")),
	), s.writeDocument)

	// Resource: on-disk layout reference.
	s.mcp.AddResource(
		mcp.NewResource("hippo://layout", "Store Layout",
			mcp.WithResourceDescription("How applications, databases and documents map onto files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

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

func (s *Server) listApplications(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.store.ListApplications(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDatabases(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	appID, err := req.RequireString("application_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prefix := "/"
	if p, err := req.RequireString("prefix"); err == nil && p != "" {
		prefix = p
	}

	dbs, err := s.store.ListDatabases(appID, prefix, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, len(dbs))
	for i, db := range dbs {
		paths[i] = db.Path
	}
	out, _ := json.MarshalIndent(paths, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// database resolves the application_id/database_path argument pair.
func (s *Server) database(req mcp.CallToolRequest) (appID, dbID string, errResult *mcp.CallToolResult) {
	appID, err := req.RequireString("application_id")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	path, err := req.RequireString("database_path")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	db, err := s.store.LookupDatabase(appID, path)
	if err != nil {
		return "", "", mcp.NewToolResultError(fmt.Sprintf("database not found: %s", path))
	}
	return appID, db.ID, nil
}

func (s *Server) listDocuments(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	appID, dbID, errResult := s.database(req)
	if errResult != nil {
		return errResult, nil
	}
	names, err := s.store.ListDocuments(appID, dbID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(names, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	appID, dbID, errResult := s.database(req)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.ReadDocument(appID, dbID, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) writeDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	appID, dbID, errResult := s.database(req)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !json.Valid([]byte(content)) {
		return mcp.NewToolResultError("content is not valid JSON"), nil
	}
	if err := s.store.UpdateDocument(appID, dbID, name, []byte(content)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("wrote document %q", name)), nil
}

const layoutDoc = `# Hippo store layout

- applications.json — all applications and tokens
- db/<application>/map.json — database id → {id, application, path}
- db/<application>/<database>/map.json — document name → document id
- db/<application>/<database>/<documentId> — raw JSON document bytes

Databases are addressed by slash-delimited paths ("/", "/settings", ...)
that form a virtual hierarchy; documents are named JSON blobs within one
database.
`

func (s *Server) readLayoutResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "hippo://layout",
			MIMEType: "text/markdown",
			Text:     layoutDoc,
		},
	}, nil
}
