package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"blockdoc/internal/domain"
	"blockdoc/internal/service"
	"blockdoc/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// DocumentService tests run against a real FileStore and a real
// SQLite history database in a temp dir.
// ─────────────────────────────────────────────────────────────

type fixture struct {
	docs    *service.DocumentService
	store   *storage.FileStore
	emitter *service.MockEmitter
	dir     string
}

func newFixture(t *testing.T) *fixture {
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
	return &fixture{docs: docs, store: store, emitter: emitter, dir: dir}
}

func textAt(x, y float64) domain.Block {
	return domain.NewBlock(domain.BlockTypeText, domain.Position{X: x, Y: y}, domain.Size{Width: 200, Height: 40})
}

func TestDocumentService_CreateAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.docs.CreateDocument(ctx, "Quarterly report")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if !f.docs.DocumentExists(doc.ID) {
		t.Fatal("expected the document to exist")
	}
	items, err := f.docs.ListDocuments()
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Quarterly report" {
		t.Fatalf("unexpected list: %+v", items)
	}
	if names := f.emitter.Names(); len(names) != 1 || names[0] != service.EventDocumentSaved {
		t.Errorf("unexpected events %v", names)
	}
}

func TestDocumentService_CreateBlankTitle(t *testing.T) {
	f := newFixture(t)
	_, err := f.docs.CreateDocument(context.Background(), "  ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	items, _ := f.docs.ListDocuments()
	if len(items) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(items))
	}
}

func TestDocumentService_AddBlockValidationGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, _ := f.docs.CreateDocument(ctx, "Gate")

	bad := textAt(0, 0)
	bad.Size.Width = -1
	_, err := f.docs.AddBlock(ctx, doc.ID, bad)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := domain.UserMessage(err); got != "Validation error: Block size must be positive" {
		t.Errorf("unexpected message %q", got)
	}

	stored, err := f.docs.LoadDocument(doc.ID)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if len(stored.Blocks) != 0 || !stored.Metadata.UpdatedAt.Equal(doc.Metadata.UpdatedAt) {
		t.Fatal("expected the stored document untouched")
	}
}

func TestDocumentService_MissingDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.docs.AddBlock(ctx, "ghost", textAt(0, 0)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("AddBlock: expected ErrNotFound, got %v", err)
	}
	if _, err := f.docs.LoadDocument("ghost"); domain.UserMessage(err) != "Document 'ghost' not found" {
		t.Fatalf("unexpected message for %v", err)
	}
	if err := f.docs.DeleteDocument(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("DeleteDocument: expected ErrNotFound, got %v", err)
	}
}

func TestDocumentService_BlockCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, _ := f.docs.CreateDocument(ctx, "Blocks")

	a, b := textAt(0, 0), textAt(0, 100)
	if _, err := f.docs.AddBlock(ctx, doc.ID, a); err != nil {
		t.Fatalf("AddBlock a: %v", err)
	}
	if _, err := f.docs.AddBlock(ctx, doc.ID, b); err != nil {
		t.Fatalf("AddBlock b: %v", err)
	}

	b.Position.X = 50
	updated, err := f.docs.UpdateBlock(ctx, doc.ID, b)
	if err != nil {
		t.Fatalf("UpdateBlock: %v", err)
	}
	if len(updated.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(updated.Blocks))
	}
	got, err := f.docs.GetBlock(doc.ID, b.ID)
	if err != nil || got.Position.X != 50 {
		t.Fatalf("GetBlock: %+v %v", got, err)
	}

	reordered, err := f.docs.ReorderBlocks(ctx, doc.ID, []string{b.ID, a.ID})
	if err != nil {
		t.Fatalf("ReorderBlocks: %v", err)
	}
	if reordered.Blocks[0].ID != b.ID || reordered.Blocks[0].ZIndex != 0 || reordered.Blocks[1].ZIndex != 1 {
		t.Fatalf("unexpected order: %+v", reordered.Blocks)
	}

	after, err := f.docs.DeleteBlock(ctx, doc.ID, a.ID)
	if err != nil {
		t.Fatalf("DeleteBlock: %v", err)
	}
	if len(after.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(after.Blocks))
	}
	if _, err := f.docs.DeleteBlock(ctx, doc.ID, a.ID); domain.UserMessage(err) != fmt.Sprintf("Block '%s' not found", a.ID) {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := f.docs.GetBlock(doc.ID, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentService_UpdateBlocksBulkIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, _ := f.docs.CreateDocument(ctx, "Bulk")
	a, b := textAt(0, 0), textAt(0, 100)
	f.docs.AddBlock(ctx, doc.ID, a)
	f.docs.AddBlock(ctx, doc.ID, b)

	a.Position.X = 10
	b.Size.Height = 0
	if _, err := f.docs.UpdateBlocksBulk(ctx, doc.ID, []domain.Block{a, b}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	stored, _ := f.docs.GetBlock(doc.ID, a.ID)
	if stored.Position.X != 0 {
		t.Fatal("expected no block updated when one update fails")
	}

	b.Size.Height = 40
	b.Position.Y = 300
	if _, err := f.docs.UpdateBlocksBulk(ctx, doc.ID, []domain.Block{a, b}); err != nil {
		t.Fatalf("UpdateBlocksBulk: %v", err)
	}
	stored, _ = f.docs.GetBlock(doc.ID, b.ID)
	if stored.Position.Y != 300 {
		t.Fatal("expected bulk update applied")
	}
}

func TestDocumentService_SaveAndMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, _ := f.docs.CreateDocument(ctx, "Draft")

	doc.AddBlock(textAt(5, 5))
	id, err := f.docs.SaveDocument(ctx, doc)
	if err != nil || id != doc.ID {
		t.Fatalf("SaveDocument: %s %v", id, err)
	}

	title, desc := "Final", "ready to ship"
	updated, err := f.docs.UpdateMetadata(ctx, doc.ID, service.MetadataPatch{Title: &title, Description: &desc, Tags: []string{"q3"}})
	if err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	if updated.Metadata.Title != "Final" || updated.Metadata.Description != desc || len(updated.Blocks) != 1 {
		t.Fatalf("unexpected document %+v", updated.Metadata)
	}

	empty := ""
	if _, err := f.docs.UpdateMetadata(ctx, doc.ID, service.MetadataPatch{Title: &empty}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected blank title rejected, got %v", err)
	}
}

func TestDocumentService_UndoRedo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, _ := f.docs.CreateDocument(ctx, "History")

	if _, err := f.docs.Undo(ctx, doc.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected nothing to undo, got %v", err)
	}

	if _, err := f.docs.AddBlock(ctx, doc.ID, textAt(0, 0)); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	undone, err := f.docs.Undo(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if len(undone.Blocks) != 0 {
		t.Fatalf("expected 0 blocks after undo, got %d", len(undone.Blocks))
	}
	stored, _ := f.docs.LoadDocument(doc.ID)
	if len(stored.Blocks) != 0 {
		t.Fatal("expected undo to be persisted")
	}

	redone, err := f.docs.Redo(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if len(redone.Blocks) != 1 {
		t.Fatalf("expected 1 block after redo, got %d", len(redone.Blocks))
	}

	tree, err := f.docs.History(doc.ID)
	if err != nil || tree == nil || len(tree.Nodes) != 2 {
		t.Fatalf("unexpected history %+v %v", tree, err)
	}
}

func TestDocumentService_BaselineForUntrackedDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Written by another process, so no history exists yet.
	doc := domain.NewDocument("External")
	if err := f.store.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := f.docs.AddBlock(ctx, doc.ID, textAt(0, 0)); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	undone, err := f.docs.Undo(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if len(undone.Blocks) != 0 {
		t.Fatalf("expected the pre-edit state, got %d blocks", len(undone.Blocks))
	}
}

func TestDocumentService_DeleteClearsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, _ := f.docs.CreateDocument(ctx, "Gone")
	if err := f.docs.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	tree, err := f.docs.History(doc.ID)
	if err != nil || tree != nil {
		t.Fatalf("expected no history, got %+v %v", tree, err)
	}
	if _, err := f.docs.Undo(ctx, doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	names := f.emitter.Names()
	if names[len(names)-1] != service.EventDocumentDeleted {
		t.Errorf("expected a delete event, got %v", names)
	}
}

func TestDocumentService_ExportImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, _ := f.docs.CreateDocument(ctx, "Shared")
	f.docs.AddBlock(ctx, doc.ID, textAt(0, 0))

	dest := filepath.Join(f.dir, "export.json")
	if err := f.docs.ExportDocument(doc.ID, dest); err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}
	imported, err := f.docs.ImportDocument(ctx, dest)
	if err != nil {
		t.Fatalf("ImportDocument: %v", err)
	}
	if imported.ID == doc.ID || len(imported.Blocks) != 1 {
		t.Fatalf("unexpected import %+v", imported)
	}
	items, _ := f.docs.ListDocuments()
	if len(items) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(items))
	}
}

// Concurrent commands on one document must not lose updates.
func TestDocumentService_ConcurrentAddsAreSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, _ := f.docs.CreateDocument(ctx, "Busy")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.docs.AddBlock(ctx, doc.ID, textAt(float64(i), 0)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("AddBlock: %v", err)
	}

	stored, err := f.docs.LoadDocument(doc.ID)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if len(stored.Blocks) != n {
		t.Fatalf("expected %d blocks, got %d", n, len(stored.Blocks))
	}
}

func TestDocumentService_SweepTempFiles(t *testing.T) {
	f := newFixture(t)
	stale := filepath.Join(f.store.Dir(), "x.json.tmp")
	os.WriteFile(stale, []byte("{"), 0o644)
	old := time.Now().Add(-time.Hour)
	os.Chtimes(stale, old, old)

	n, err := f.docs.SweepTempFiles(time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("SweepTempFiles: %d %v", n, err)
	}
}

func TestDocumentService_NoHistory(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	docs := service.NewDocumentService(store, nil, &service.MockEmitter{}, nil)
	ctx := context.Background()
	doc, err := docs.CreateDocument(ctx, "Plain")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if _, err := docs.AddBlock(ctx, doc.ID, textAt(0, 0)); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if _, err := docs.Undo(ctx, doc.ID); err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected history disabled, got %v", err)
	}
}

func TestDocumentService_EditDocumentSeesConcurrentEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, _ := f.docs.CreateDocument(ctx, "Busy")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.docs.EditDocument(ctx, doc.ID, "add text", func(d *domain.Document) error {
				b := textAt(0, 0)
				b.ZIndex = len(d.Blocks)
				d.AddBlock(b)
				return nil
			})
			if err != nil {
				t.Errorf("EditDocument: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := f.docs.LoadDocument(doc.ID)
	if len(got.Blocks) != 8 {
		t.Fatalf("expected 8 blocks, got %d", len(got.Blocks))
	}
	for i, b := range got.Blocks {
		if b.ZIndex != i {
			t.Errorf("block %d has z-index %d; an edit ran on a stale copy", i, b.ZIndex)
		}
	}
}
