package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blockdoc/internal/domain"
	"blockdoc/internal/service"
	"blockdoc/internal/storage"

	"github.com/mark3labs/mcp-go/mcp"
)

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, _ []domain.Block, outputPath string, _, _ float64) (string, error) {
	return outputPath, os.WriteFile(outputPath, []byte("%PDF-1.4"), 0o644)
}

func (stubRenderer) CheckAvailability(context.Context) (string, error) { return "Stub 2.0", nil }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(dir, "docs"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	db, err := storage.New(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open history db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	emitter := &service.MockEmitter{}
	docs := service.NewDocumentService(store, storage.NewHistoryStore(db, 0), emitter, nil)
	return New(Deps{
		Documents: docs,
		Renders:   service.NewRenderService(docs, stubRenderer{}, filepath.Join(dir, "exports"), emitter, nil),
		Tables:    service.NewTableService(docs, nil),
	}), dir
}

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, h toolHandler, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return res.Content[0].(mcp.TextContent).Text, res.IsError
}

func createDoc(t *testing.T, s *Server, title string) string {
	t.Helper()
	out, isErr := call(t, s.handleCreateDocument, map[string]any{"title": title, "description": "made by a test"})
	if isErr {
		t.Fatalf("create_document: %s", out)
	}
	var item domain.DocumentListItem
	if err := json.Unmarshal([]byte(out), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Description != "made by a test" {
		t.Errorf("expected description set, got %q", item.Description)
	}
	return item.ID
}

func TestTools_AddBlockAutoLayout(t *testing.T) {
	s, _ := newTestServer(t)
	docID := createDoc(t, s, "Layout")

	var placed []domain.Block
	for i := 0; i < 3; i++ {
		out, isErr := call(t, s.handleAddBlock, map[string]any{"documentId": docID, "type": "text", "text": "hello"})
		if isErr {
			t.Fatalf("add_block: %s", out)
		}
		var b domain.Block
		if err := json.Unmarshal([]byte(out), &b); err != nil {
			t.Fatalf("decode block: %v", err)
		}
		placed = append(placed, b)
	}

	for i := range placed {
		for j := i + 1; j < len(placed); j++ {
			if blockRect(placed[i]).intersects(blockRect(placed[j])) {
				t.Errorf("blocks %d and %d overlap", i, j)
			}
		}
	}
	if placed[2].ZIndex <= placed[1].ZIndex {
		t.Errorf("expected increasing z-index, got %d then %d", placed[1].ZIndex, placed[2].ZIndex)
	}

	doc, err := s.docs.LoadDocument(docID)
	if err != nil || len(doc.Blocks) != 3 {
		t.Fatalf("expected 3 stored blocks, got %v %v", doc, err)
	}
}

func TestTools_AddBlockErrors(t *testing.T) {
	s, _ := newTestServer(t)
	docID := createDoc(t, s, "Errors")

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing document", map[string]any{"documentId": "ghost", "type": "text"}, "Document 'ghost' not found"},
		{"unknown type", map[string]any{"documentId": docID, "type": "video"}, "Unknown block type"},
		{"image without src", map[string]any{"documentId": docID, "type": "image"}, "Image source cannot be empty"},
		{"bad rows", map[string]any{"documentId": docID, "type": "table", "rows": "nope"}, "Invalid table rows"},
		{"negative size", map[string]any{"documentId": docID, "type": "spacer", "width": -1.0}, "Block size must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, isErr := call(t, s.handleAddBlock, tt.args)
			if !isErr || !strings.Contains(out, tt.want) {
				t.Errorf("expected error containing %q, got %q (isError=%v)", tt.want, out, isErr)
			}
		})
	}
}

func TestTools_EditDeleteUndo(t *testing.T) {
	s, _ := newTestServer(t)
	docID := createDoc(t, s, "Edits")

	out, _ := call(t, s.handleAddBlock, map[string]any{
		"documentId": docID, "type": "table", "rows": `[["Name","Qty"],["Bolt","4"]]`, "x": 10.0, "y": 10.0,
	})
	var table domain.Block
	json.Unmarshal([]byte(out), &table)
	if table.Position.X != 10 || len(table.Content.(domain.TableContent).Rows) != 2 {
		t.Fatalf("unexpected table block %+v", table)
	}

	out, isErr := call(t, s.handleUpdateBlockText, map[string]any{"documentId": docID, "blockId": table.ID, "text": "x"})
	if !isErr || !strings.Contains(out, "is not a text block") {
		t.Fatalf("expected a type error, got %q", out)
	}

	if out, isErr := call(t, s.handleDeleteBlock, map[string]any{"documentId": docID, "blockId": table.ID}); isErr {
		t.Fatalf("delete_block: %s", out)
	}
	if out, isErr := call(t, s.handleUndo, map[string]any{"documentId": docID}); isErr || !strings.Contains(out, "1 blocks") {
		t.Fatalf("undo: %s", out)
	}
	if out, isErr := call(t, s.handleRedo, map[string]any{"documentId": docID}); isErr || !strings.Contains(out, "0 blocks") {
		t.Fatalf("redo: %s", out)
	}
}

func TestTools_UpdateTextAndReorder(t *testing.T) {
	s, _ := newTestServer(t)
	docID := createDoc(t, s, "Order")

	var ids []string
	for i := 0; i < 2; i++ {
		out, _ := call(t, s.handleAddBlock, map[string]any{"documentId": docID, "type": "text"})
		var b domain.Block
		json.Unmarshal([]byte(out), &b)
		ids = append(ids, b.ID)
	}

	if out, isErr := call(t, s.handleUpdateBlockText, map[string]any{"documentId": docID, "blockId": ids[0], "text": "Title"}); isErr {
		t.Fatalf("update_block_text: %s", out)
	}
	if out, isErr := call(t, s.handleReorderBlocks, map[string]any{"documentId": docID, "blockIds": ids[1] + ", " + ids[0]}); isErr {
		t.Fatalf("reorder_blocks: %s", out)
	}

	doc, _ := s.docs.LoadDocument(docID)
	if doc.Blocks[0].ID != ids[1] || doc.Blocks[1].ID != ids[0] {
		t.Fatalf("unexpected order %s, %s", doc.Blocks[0].ID, doc.Blocks[1].ID)
	}
	if doc.Blocks[1].Content.(domain.TextContent).Text != "Title" {
		t.Error("expected the text to be updated")
	}

	if out, isErr := call(t, s.handleReorderBlocks, map[string]any{"documentId": docID, "blockIds": " , "}); !isErr {
		t.Fatalf("expected an error for empty ids, got %q", out)
	}
}

func TestTools_ArrangeBlocks(t *testing.T) {
	s, _ := newTestServer(t)
	docID := createDoc(t, s, "Pile")
	for i := 0; i < 4; i++ {
		call(t, s.handleAddBlock, map[string]any{"documentId": docID, "type": "spacer", "x": 0.0, "y": 0.0})
	}

	if out, isErr := call(t, s.handleArrangeBlocks, map[string]any{"documentId": docID}); isErr {
		t.Fatalf("arrange_blocks: %s", out)
	}
	doc, _ := s.docs.LoadDocument(docID)
	for i := range doc.Blocks {
		for j := i + 1; j < len(doc.Blocks); j++ {
			if blockRect(doc.Blocks[i]).intersects(blockRect(doc.Blocks[j])) {
				t.Errorf("blocks %d and %d overlap after arrange", i, j)
			}
		}
	}
}

func TestTools_ArrangeKeepsContentEdits(t *testing.T) {
	s, _ := newTestServer(t)
	docID := createDoc(t, s, "Edited")
	out, _ := call(t, s.handleAddBlock, map[string]any{"documentId": docID, "type": "text", "text": "a"})
	var b domain.Block
	json.Unmarshal([]byte(out), &b)

	if out, isErr := call(t, s.handleUpdateBlockText, map[string]any{"documentId": docID, "blockId": b.ID, "text": "b"}); isErr {
		t.Fatalf("update_block_text: %s", out)
	}
	if out, isErr := call(t, s.handleArrangeBlocks, map[string]any{"documentId": docID, "startX": 40.0, "startY": 40.0}); isErr {
		t.Fatalf("arrange_blocks: %s", out)
	}
	got, _ := s.docs.GetBlock(docID, b.ID)
	if got.Content.(domain.TextContent).Text != "b" || got.Position.X != 40 {
		t.Fatalf("expected the edit kept and the block moved, got %+v", got)
	}
}

func TestTools_DocumentWithoutPages(t *testing.T) {
	s, dir := newTestServer(t)
	docID := createDoc(t, s, "Pageless")
	path := filepath.Join(dir, "docs", docID+".json")
	data, _ := os.ReadFile(path)
	var raw map[string]any
	json.Unmarshal(data, &raw)
	raw["pages"] = []any{}
	data, _ = json.Marshal(raw)
	os.WriteFile(path, data, 0o644)

	for name, h := range map[string]toolHandler{"add_block": s.handleAddBlock, "arrange_blocks": s.handleArrangeBlocks} {
		out, isErr := call(t, h, map[string]any{"documentId": docID, "type": "text"})
		if !isErr || !strings.Contains(out, "Document has no pages") {
			t.Errorf("%s: expected a no-pages error, got %q", name, out)
		}
	}
}

func TestTools_RenderAndWorker(t *testing.T) {
	s, dir := newTestServer(t)
	docID := createDoc(t, s, "Print me")

	out, isErr := call(t, s.handleRenderDocument, map[string]any{"documentId": docID})
	if isErr {
		t.Fatalf("render_document: %s", out)
	}
	if !strings.Contains(out, filepath.Join(dir, "exports", "Print_me.pdf")) {
		t.Errorf("unexpected result %s", out)
	}

	out, isErr = call(t, s.handleCheckRenderWorker, nil)
	if isErr || out != "Stub 2.0" {
		t.Fatalf("check_render_worker: %q", out)
	}
}

func TestTools_ListAndGet(t *testing.T) {
	s, _ := newTestServer(t)
	docID := createDoc(t, s, "Listed")

	out, _ := call(t, s.handleListDocuments, nil)
	var items []domain.DocumentListItem
	if err := json.Unmarshal([]byte(out), &items); err != nil || len(items) != 1 || items[0].ID != docID {
		t.Fatalf("unexpected list %s", out)
	}

	out, isErr := call(t, s.handleGetDocument, map[string]any{"documentId": docID})
	var doc domain.Document
	if isErr || json.Unmarshal([]byte(out), &doc) != nil || doc.Metadata.Title != "Listed" {
		t.Fatalf("unexpected document %s", out)
	}

	if _, isErr := call(t, s.handleGetDocument, map[string]any{}); !isErr {
		t.Fatal("expected an error without documentId")
	}
}

func TestResources(t *testing.T) {
	s, _ := newTestServer(t)
	docID := createDoc(t, s, "Resource")

	var req mcp.ReadResourceRequest
	req.Params.URI = documentsURI
	contents, err := s.handleDocumentsResource(context.Background(), req)
	if err != nil {
		t.Fatalf("documents resource: %v", err)
	}
	if text := contents[0].(mcp.TextResourceContents).Text; !strings.Contains(text, docID) {
		t.Errorf("expected %s in %s", docID, text)
	}

	req.Params.URI = documentURIPrefix + docID
	contents, err = s.handleDocumentResource(context.Background(), req)
	if err != nil {
		t.Fatalf("document resource: %v", err)
	}
	if text := contents[0].(mcp.TextResourceContents).Text; !strings.Contains(text, `"title": "Resource"`) {
		t.Errorf("unexpected document %s", text)
	}

	req.Params.URI = documentURIPrefix + "a/b"
	if _, err := s.handleDocumentResource(context.Background(), req); err == nil {
		t.Error("expected an error for a nested URI")
	}
}
