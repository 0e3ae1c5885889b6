package mcpserver

import (
	"context"
	"fmt"

	"blockdoc/internal/domain"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerTableTools() {
	s.mcp.AddTool(mcp.NewTool("fill_table_from_query",
		mcp.WithDescription("Replace the rows of a table block with the result of a read-only database query"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Table block ID"), mcp.Required()),
		mcp.WithString("driver",
			mcp.Description("Database driver"),
			mcp.Enum("postgres", "mysql", "sqlite", "mongodb", "csv", "json"),
			mcp.Required(),
		),
		mcp.WithString("host", mcp.Description("Host, or the file path for sqlite, csv and json")),
		mcp.WithNumber("port", mcp.Description("Port (optional)")),
		mcp.WithString("database", mcp.Description("Database name")),
		mcp.WithString("username", mcp.Description("User name")),
		mcp.WithString("password", mcp.Description("Password")),
		mcp.WithString("query", mcp.Description(`SQL SELECT; for mongodb {"collection":...,"filter":{...}}; for json an optional dotted path to the rows`)),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 200)")),
		mcp.WithBoolean("includeHeader", mcp.Description("Add the column names as a header row (default true)")),
	), s.handleFillTable)
}

func (s *Server) handleFillTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	blockID, err := req.RequireString("blockId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q := domain.TableQuery{
		Source: domain.TableSource{
			Driver:   domain.DatabaseDriver(req.GetString("driver", "")),
			Host:     req.GetString("host", ""),
			Port:     req.GetInt("port", 0),
			Database: req.GetString("database", ""),
			Username: req.GetString("username", ""),
			Password: req.GetString("password", ""),
		},
		Query:         req.GetString("query", ""),
		Limit:         req.GetInt("limit", domain.DefaultTableLimit),
		IncludeHeader: req.GetBool("includeHeader", true),
	}

	doc, err := s.tables.FillTableFromQuery(ctx, docID, blockID, q)
	if err != nil {
		return s.toolError("fill_table_from_query", err)
	}
	b, _ := doc.GetBlock(blockID)
	rows := 0
	if tc, ok := b.Content.(domain.TableContent); ok {
		rows = len(tc.Rows)
	}
	return textResult(fmt.Sprintf("Table %s now has %d rows", blockID, rows)), nil
}
