package mcpserver

import (
	"context"
	"fmt"

	"blockdoc/internal/domain"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerBlockTools() {
	// ── add_block ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_block",
		mcp.WithDescription("Add a block to a document. Position is auto-calculated on the first page if x/y are omitted."),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithString("type",
			mcp.Description("Block type: text, image, table, spacer"),
			mcp.Enum("text", "image", "table", "spacer"),
			mcp.Required(),
		),
		mcp.WithNumber("x", mcp.Description("X position in pixels (optional, auto-layout if omitted)")),
		mcp.WithNumber("y", mcp.Description("Y position in pixels (optional, auto-layout if omitted)")),
		mcp.WithNumber("width", mcp.Description("Width in pixels (optional, uses the type default)")),
		mcp.WithNumber("height", mcp.Description("Height in pixels (optional, uses the type default)")),
		mcp.WithString("text", mcp.Description("Text for a text block")),
		mcp.WithString("src", mcp.Description("File path or data URL for an image block")),
		mcp.WithString("rows", mcp.Description(`Table cells as a JSON array of arrays, e.g. [["Name","Qty"],["Bolt","4"]]`)),
		mcp.WithBoolean("header", mcp.Description("Treat the first table row as a bold header (default true)")),
	), s.handleAddBlock)

	// ── update_block_text ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block_text",
		mcp.WithDescription("Replace the text of a text block"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("text", mcp.Description("New text"), mcp.Required()),
	), s.handleUpdateBlockText)

	// ── delete_block (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a block. It can be restored with undo."),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID to delete"), mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	), s.handleDeleteBlock)

	// ── reorder_blocks ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("reorder_blocks",
		mcp.WithDescription("Set the stacking order of blocks: the first ID is drawn at the bottom"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithString("blockIds", mcp.Description("Comma-separated block IDs, bottom to top"), mcp.Required()),
	), s.handleReorderBlocks)

	// ── arrange_blocks ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("arrange_blocks",
		mcp.WithDescription("Lay out all blocks of a document in rows on the first page, in stacking order"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithNumber("startX", mcp.Description("Starting X position (default 0)")),
		mcp.WithNumber("startY", mcp.Description("Starting Y position (default 0)")),
	), s.handleArrangeBlocks)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleAddBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	docID, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	blockType := domain.BlockType(req.GetString("type", ""))

	content, err := contentFromArgs(blockType, req)
	if err != nil {
		return s.toolError("add_block", err)
	}

	size := domain.DefaultSize(blockType)
	size.Width = getFloat(args, "width", size.Width)
	size.Height = getFloat(args, "height", size.Height)
	x, hasX := args["x"].(float64)
	y, hasY := args["y"].(float64)

	var block domain.Block
	_, err = s.docs.EditDocument(ctx, docID, "add "+string(blockType), func(doc *domain.Document) error {
		if !hasX || !hasY {
			page, err := doc.FirstPage()
			if err != nil {
				return err
			}
			pageW, pageH := page.DimensionsPX()
			x, y = s.layout.NextPosition(doc.Blocks, size.Width, size.Height, pageW, pageH)
		}
		block = domain.NewBlock(blockType, domain.Position{X: x, Y: y}, size)
		block.Content = content
		// Draw on top of everything already placed.
		for _, b := range doc.Blocks {
			if b.ZIndex >= block.ZIndex {
				block.ZIndex = b.ZIndex + 1
			}
		}
		if err := domain.ValidateBlock(block); err != nil {
			return err
		}
		doc.AddBlock(block)
		return nil
	})
	if err != nil {
		return s.toolError("add_block", err)
	}
	return jsonResult(block)
}

// contentFromArgs builds the content variant for blockType from the
// add_block arguments.
func contentFromArgs(blockType domain.BlockType, req mcp.CallToolRequest) (domain.BlockContent, error) {
	switch blockType {
	case domain.BlockTypeText:
		c := domain.DefaultContent(blockType).(domain.TextContent)
		c.Text = req.GetString("text", "")
		return c, nil
	case domain.BlockTypeImage:
		c := domain.DefaultContent(blockType).(domain.ImageContent)
		c.Src = req.GetString("src", "")
		return c, nil
	case domain.BlockTypeTable:
		var rows [][]string
		if err := parseJSON(req.GetString("rows", `[[""]]`), &rows); err != nil {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("Invalid table rows: %v", err)}
		}
		if len(rows) == 0 {
			return nil, &domain.ValidationError{Reason: "Table must have at least one row"}
		}
		if req.GetBool("header", true) {
			return domain.TableFromRows(rows[0], rows[1:], nil), nil
		}
		return domain.TableFromRows(nil, rows, nil), nil
	case domain.BlockTypeSpacer:
		return domain.SpacerContent{}, nil
	}
	return nil, &domain.ValidationError{Reason: fmt.Sprintf("Unknown block type: %s", blockType)}
}

func (s *Server) handleUpdateBlockText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	blockID, err := req.RequireString("blockId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	_, err = s.docs.UpdateBlockWith(ctx, docID, blockID, "edit text", func(b *domain.Block) error {
		c, ok := b.Content.(domain.TextContent)
		if !ok {
			return &domain.ValidationError{Reason: fmt.Sprintf("Block '%s' is not a text block", blockID)}
		}
		c.Text = text
		b.Content = c
		return nil
	})
	if err != nil {
		return s.toolError("update_block_text", err)
	}
	return textResult(fmt.Sprintf("Block %s text updated", blockID)), nil
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	blockID, err := req.RequireString("blockId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.docs.DeleteBlock(ctx, docID, blockID); err != nil {
		return s.toolError("delete_block", err)
	}
	return textResult(fmt.Sprintf("Block %s deleted", blockID)), nil
}

func (s *Server) handleReorderBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids := splitIDs(req.GetString("blockIds", ""))
	if len(ids) == 0 {
		return mcp.NewToolResultError("blockIds is required"), nil
	}
	if _, err := s.docs.ReorderBlocks(ctx, docID, ids); err != nil {
		return s.toolError("reorder_blocks", err)
	}
	return textResult(fmt.Sprintf("Reordered %d blocks", len(ids))), nil
}

func (s *Server) handleArrangeBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	docID, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var n int
	_, err = s.docs.EditDocument(ctx, docID, "arrange blocks", func(doc *domain.Document) error {
		page, err := doc.FirstPage()
		if err != nil {
			return err
		}
		pageW, _ := page.DimensionsPX()
		s.layout.ArrangeGroup(doc.Blocks, getFloat(args, "startX", 0), getFloat(args, "startY", 0), pageW)
		n = len(doc.Blocks)
		doc.Touch()
		return nil
	})
	if err != nil {
		return s.toolError("arrange_blocks", err)
	}
	return textResult(fmt.Sprintf("Arranged %d blocks", n)), nil
}
