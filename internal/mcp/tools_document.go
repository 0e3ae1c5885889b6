package mcpserver

import (
	"context"
	"fmt"

	"blockdoc/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerDocumentTools() {
	// ── list_documents ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all documents, most recently updated first"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListDocuments)

	// ── get_document ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Get a document with its pages and blocks"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleGetDocument)

	// ── create_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create an empty document with one A4 portrait page"),
		mcp.WithString("title", mcp.Description("Document title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Short description (optional)")),
	), s.handleCreateDocument)

	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last change to a document"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
	), s.handleUndo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone change to a document"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
	), s.handleRedo)
}

func (s *Server) registerRenderTools() {
	// ── render_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("render_document",
		mcp.WithDescription("Render a document to PDF with the external render worker"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithString("outputPath", mcp.Description("PDF path (optional, defaults to the exports folder)")),
	), s.handleRenderDocument)

	// ── check_render_worker ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("check_render_worker",
		mcp.WithDescription("Check that the render worker is installed and report its version"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleCheckRenderWorker)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.docs.ListDocuments()
	if err != nil {
		return s.toolError("list_documents", err)
	}
	return jsonResult(items)
}

func (s *Server) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.LoadDocument(id)
	if err != nil {
		return s.toolError("get_document", err)
	}
	return jsonResult(doc)
}

func (s *Server) handleCreateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.CreateDocument(ctx, title)
	if err != nil {
		return s.toolError("create_document", err)
	}
	if desc := req.GetString("description", ""); desc != "" {
		if doc, err = s.docs.UpdateMetadata(ctx, doc.ID, service.MetadataPatch{Description: &desc}); err != nil {
			return s.toolError("create_document", err)
		}
	}
	return jsonResult(doc.ListItem())
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.Undo(ctx, id)
	if err != nil {
		return s.toolError("undo", err)
	}
	return textResult(fmt.Sprintf("Undone. Document %s now has %d blocks", doc.ID, len(doc.Blocks))), nil
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.Redo(ctx, id)
	if err != nil {
		return s.toolError("redo", err)
	}
	return textResult(fmt.Sprintf("Redone. Document %s now has %d blocks", doc.ID, len(doc.Blocks))), nil
}

func (s *Server) handleRenderDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.renders.GenerateRender(ctx, id, req.GetString("outputPath", ""))
	if err != nil {
		return s.toolError("render_document", err)
	}
	return jsonResult(result)
}

func (s *Server) handleCheckRenderWorker(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	version, err := s.renders.CheckRenderWorker(ctx)
	if err != nil {
		return s.toolError("check_render_worker", err)
	}
	return textResult(version), nil
}
