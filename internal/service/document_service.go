package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"blockdoc/internal/domain"
	"blockdoc/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Document Service: every command that reads or changes the store
// ─────────────────────────────────────────────────────────────

// DocumentService serializes all store access behind one lock. Each
// mutating command runs load → mutate → validate → save while holding it,
// so two commands on the same document can never interleave.
type DocumentService struct {
	mu      sync.Mutex
	store   *storage.FileStore
	history *storage.HistoryStore // nil disables undo
	emitter EventEmitter
	logger  *slog.Logger
}

// NewDocumentService creates a DocumentService. history may be nil.
func NewDocumentService(store *storage.FileStore, history *storage.HistoryStore, emitter EventEmitter, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		store:   store,
		history: history,
		emitter: emitter,
		logger:  logger.With("component", "documents"),
	}
}

// MetadataPatch changes the fields that are set and leaves the rest.
type MetadataPatch struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Author      *string  `json:"author,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ── Documents ─────────────────────────────────────────────

func (s *DocumentService) CreateDocument(ctx context.Context, title string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := domain.NewDocument(title)
	if err := s.store.Save(doc); err != nil {
		return nil, err
	}
	s.record("create", doc)
	s.logger.Info("document created", "id", doc.ID)
	s.emitter.Emit(ctx, EventDocumentSaved, doc.ListItem())
	return doc, nil
}

// SaveDocument replaces the stored document with doc and returns its id.
func (s *DocumentService) SaveDocument(ctx context.Context, doc *domain.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := doc.Validate(); err != nil {
		return "", err
	}
	if prev, err := s.store.Load(doc.ID); err == nil {
		s.ensureBaseline(prev)
	}
	if err := s.store.Save(doc); err != nil {
		return "", err
	}
	s.record("save", doc)
	s.emitter.Emit(ctx, EventDocumentSaved, doc.ListItem())
	return doc.ID, nil
}

func (s *DocumentService) LoadDocument(id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(id)
}

func (s *DocumentService) ListDocuments() ([]domain.DocumentListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.List()
}

func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(id); err != nil {
		return err
	}
	if s.history != nil {
		if err := s.history.Clear(id); err != nil {
			s.logger.Warn("clear history failed", "id", id, "error", err)
		}
	}
	s.emitter.Emit(ctx, EventDocumentDeleted, id)
	return nil
}

func (s *DocumentService) ExportDocument(id, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Export(id, destPath)
}

// ImportDocument stores a copy of the file at srcPath under a new id.
func (s *DocumentService) ImportDocument(ctx context.Context, srcPath string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Import(srcPath)
	if err != nil {
		return nil, err
	}
	s.record("import", doc)
	s.emitter.Emit(ctx, EventDocumentSaved, doc.ListItem())
	return doc, nil
}

func (s *DocumentService) DocumentExists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Exists(id)
}

func (s *DocumentService) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) (*domain.Document, error) {
	return s.mutate(ctx, id, "edit details", func(doc *domain.Document) error {
		m := &doc.Metadata
		if patch.Title != nil {
			m.Title = *patch.Title
		}
		if patch.Description != nil {
			m.Description = *patch.Description
		}
		if patch.Author != nil {
			m.Author = *patch.Author
		}
		if patch.Tags != nil {
			m.Tags = patch.Tags
		}
		doc.Touch()
		return nil
	})
}

// ── Blocks ────────────────────────────────────────────────

// AddBlock validates block before touching the store.
func (s *DocumentService) AddBlock(ctx context.Context, docID string, block domain.Block) (*domain.Document, error) {
	if err := domain.ValidateBlock(block); err != nil {
		return nil, err
	}
	return s.mutate(ctx, docID, "add "+string(block.Type), func(doc *domain.Document) error {
		doc.AddBlock(block)
		return nil
	})
}

func (s *DocumentService) UpdateBlock(ctx context.Context, docID string, block domain.Block) (*domain.Document, error) {
	if err := domain.ValidateBlock(block); err != nil {
		return nil, err
	}
	return s.mutate(ctx, docID, "edit "+string(block.Type), func(doc *domain.Document) error {
		return doc.UpdateBlock(block)
	})
}

// UpdateBlockWith applies fn to the stored block and validates the result,
// all under the store lock.
func (s *DocumentService) UpdateBlockWith(ctx context.Context, docID, blockID, label string, fn func(b *domain.Block) error) (*domain.Document, error) {
	return s.mutate(ctx, docID, label, func(doc *domain.Document) error {
		b, ok := doc.GetBlock(blockID)
		if !ok {
			return domain.BlockNotFound(blockID)
		}
		if err := fn(&b); err != nil {
			return err
		}
		if err := domain.ValidateBlock(b); err != nil {
			return err
		}
		return doc.UpdateBlock(b)
	})
}

func (s *DocumentService) DeleteBlock(ctx context.Context, docID, blockID string) (*domain.Document, error) {
	return s.mutate(ctx, docID, "delete block", func(doc *domain.Document) error {
		if _, ok := doc.RemoveBlock(blockID); !ok {
			return domain.BlockNotFound(blockID)
		}
		return nil
	})
}

// ReorderBlocks gives each listed block the z-index of its position in
// blockIDs, then sorts the document's blocks by z-index.
func (s *DocumentService) ReorderBlocks(ctx context.Context, docID string, blockIDs []string) (*domain.Document, error) {
	return s.mutate(ctx, docID, "reorder", func(doc *domain.Document) error {
		doc.SetZOrder(blockIDs)
		doc.ReorderBlocks()
		return nil
	})
}

// UpdateBlocksBulk updates every block or none: the document is saved once,
// after all updates succeeded.
func (s *DocumentService) UpdateBlocksBulk(ctx context.Context, docID string, blocks []domain.Block) (*domain.Document, error) {
	return s.mutate(ctx, docID, "edit blocks", func(doc *domain.Document) error {
		for _, b := range blocks {
			if err := domain.ValidateBlock(b); err != nil {
				return err
			}
			if err := doc.UpdateBlock(b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DocumentService) GetBlock(docID, blockID string) (domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(docID)
	if err != nil {
		return domain.Block{}, err
	}
	b, ok := doc.GetBlock(blockID)
	if !ok {
		return domain.Block{}, domain.BlockNotFound(blockID)
	}
	return b, nil
}

// ── History ───────────────────────────────────────────────

// Undo restores the previous recorded state of a document.
func (s *DocumentService) Undo(ctx context.Context, docID string) (*domain.Document, error) {
	return s.travel(ctx, docID, "undo")
}

// Redo re-applies the most recently undone state.
func (s *DocumentService) Redo(ctx context.Context, docID string) (*domain.Document, error) {
	return s.travel(ctx, docID, "redo")
}

func (s *DocumentService) travel(ctx context.Context, docID, dir string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.Exists(docID) {
		return nil, domain.DocumentNotFound(docID)
	}
	if s.history == nil {
		return nil, &domain.ValidationError{Reason: "History is disabled"}
	}

	move := s.history.Undo
	if dir == "redo" {
		move = s.history.Redo
	}
	doc, ok, err := move(docID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.ValidationError{Reason: "Nothing to " + dir}
	}

	doc.Touch()
	if err := s.store.Save(doc); err != nil {
		return nil, err
	}
	s.logger.Info("history step", "id", docID, "direction", dir)
	s.emitter.Emit(ctx, EventDocumentSaved, doc.ListItem())
	return doc, nil
}

// History returns the recorded states of a document, or nil if none.
func (s *DocumentService) History(docID string) (*storage.HistoryTree, error) {
	if s.history == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Tree(docID)
}

// ── Maintenance ───────────────────────────────────────────

// SweepTempFiles removes temp files of crashed saves. It takes the store
// lock so it never races a save in progress.
func (s *DocumentService) SweepTempFiles(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SweepTemp(maxAge)
}

// EditDocument runs fn on the stored document under the store lock and
// saves the result, so edits computed from the document's current state
// cannot overwrite concurrent commands. label names the history entry.
func (s *DocumentService) EditDocument(ctx context.Context, docID, label string, fn func(doc *domain.Document) error) (*domain.Document, error) {
	return s.mutate(ctx, docID, label, fn)
}

// ── internals ─────────────────────────────────────────────

// mutate runs one load → fn → save sequence under the store lock. The
// stored file is untouched when fn or the save fails.
func (s *DocumentService) mutate(ctx context.Context, docID, label string, fn func(doc *domain.Document) error) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(docID)
	if err != nil {
		return nil, err
	}
	s.ensureBaseline(doc)

	if err := fn(doc); err != nil {
		return nil, err
	}
	if err := s.store.Save(doc); err != nil {
		return nil, err
	}
	s.record(label, doc)
	s.emitter.Emit(ctx, EventDocumentSaved, doc.ListItem())
	return doc, nil
}

// ensureBaseline records the state a document was in before its first
// tracked change, so that change can be undone.
func (s *DocumentService) ensureBaseline(doc *domain.Document) {
	if s.history == nil {
		return
	}
	ok, err := s.history.HasHistory(doc.ID)
	if err != nil {
		s.logger.Warn("read history failed", "id", doc.ID, "error", err)
		return
	}
	if !ok {
		s.record("open", doc)
	}
}

// record failures never fail the command that triggered them.
func (s *DocumentService) record(label string, doc *domain.Document) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(label, doc); err != nil {
		s.logger.Warn("record history failed", "id", doc.ID, "error", err)
	}
}
