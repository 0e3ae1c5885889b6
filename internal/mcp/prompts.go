package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("draft_report",
		mcp.WithPromptDescription("Guide through building a one-page report and rendering it to PDF"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("Topic or title of the report"),
			mcp.RequiredArgument(),
		),
	), s.handleDraftReportPrompt)
}

func (s *Server) handleDraftReportPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Draft a report about: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Create a one-page report about "%s". Follow these steps:

1. Use create_document with the title "%s"
2. Add a text block (add_block, type "text") with a short heading, then one with a summary paragraph
3. Add a table block (add_block, type "table") with the key figures; use fill_table_from_query if the data lives in a database
4. Call arrange_blocks so nothing overlaps, then get_document to check the layout
5. Call render_document and report the PDF path

Keep every block inside the first page. Use undo if a step goes wrong.`, topic, topic),
				},
			},
		},
	}, nil
}
