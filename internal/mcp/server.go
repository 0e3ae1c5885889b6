package mcpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"blockdoc/internal/domain"
	"blockdoc/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for BlockDoc.
// It exposes tools, resources and a prompt so AI agents can build and
// render documents through the same command layer as the editor.
type Server struct {
	mcp    *server.MCPServer
	layout *LayoutEngine
	logger *slog.Logger

	docs    *service.DocumentService
	renders *service.RenderService
	tables  *service.TableService
}

// Deps holds the services passed from the App layer to the MCP server.
// Renders and Tables may be nil; their tools are then not registered.
type Deps struct {
	Documents *service.DocumentService
	Renders   *service.RenderService
	Tables    *service.TableService
	Logger    *slog.Logger
}

// New creates and configures the MCP server with all tools and resources.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		layout:  NewLayoutEngine(),
		logger:  logger.With("component", "mcp"),
		docs:    deps.Documents,
		renders: deps.Renders,
		tables:  deps.Tables,
	}

	s.mcp = server.NewMCPServer(
		"blockdoc-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerDocumentTools()
	s.registerBlockTools()
	if s.renders != nil {
		s.registerRenderTools()
	}
	if s.tables != nil {
		s.registerTableTools()
	}
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// HTTPServer wraps the server in the streamable HTTP transport, used when
// the desktop app exposes its tools on a local address.
func (s *Server) HTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// toolError reports a command failure to the agent as a tool result
// carrying the same message the editor would show.
func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, error) {
	s.logger.Warn("tool failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(domain.UserMessage(err)), nil
}
