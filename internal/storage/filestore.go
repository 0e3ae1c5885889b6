package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"blockdoc/internal/domain"
)

const (
	docExt  = ".json"
	tempExt = ".tmp"
)

// renameFunc is swapped in tests to simulate a crash between the temp
// write and the rename.
var renameFunc = os.Rename

// FileStore implements domain.DocumentStore as one pretty-printed JSON file
// per document, <dir>/<id>.json. Writes go through <id>.json.tmp and a
// rename so a reader sees either the old or the new file.
//
// FileStore does no locking of its own.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// DefaultDir returns ~/Documents/BlockDoc.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "Documents", "BlockDoc"), nil
}

// NewFileStore creates dir if needed. A nil logger uses slog.Default().
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w: %w", dir, domain.ErrIO, err)
	}
	return &FileStore{dir: dir, logger: logger.With("component", "filestore")}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", &domain.ValidationError{Reason: fmt.Sprintf("Invalid document id: %q", id)}
	}
	return filepath.Join(s.dir, id+docExt), nil
}

// Save validates doc and atomically replaces its file. Nothing is written
// when validation fails.
func (s *FileStore) Save(doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	target, err := s.path(doc.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document %s: %w: %w", doc.ID, domain.ErrSerialization, err)
	}

	tmp := target + tempExt
	if err := writeSynced(tmp, data); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save document %s: %w: %w", doc.ID, domain.ErrIO, err)
	}
	if err := renameFunc(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save document %s: %w: %w", doc.ID, domain.ErrIO, err)
	}
	s.syncDir()

	s.logger.Debug("document saved", "id", doc.ID, "bytes", len(data))
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes the rename. Not every platform can fsync a directory,
// so failures are only logged.
func (s *FileStore) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		s.logger.Debug("directory sync skipped", "error", err)
	}
}

func (s *FileStore) Load(id string) (*domain.Document, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.DocumentNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w: %w", id, domain.ErrIO, err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w: %w", id, domain.ErrSerialization, err)
	}
	return &doc, nil
}

// List returns every readable document, most recently updated first.
// Each file is fully decoded; unreadable or corrupt files and files
// whose id does not match their name are logged and skipped.
func (s *FileStore) List() ([]domain.DocumentListItem, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w: %w", domain.ErrIO, err)
	}

	items := []domain.DocumentListItem{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != docExt {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(p)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "file", e.Name(), "error", err)
			continue
		}
		var doc domain.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			s.logger.Warn("skipping corrupt document", "file", e.Name(), "error", err)
			continue
		}
		// Only files Load can open under their listed id count as documents.
		if stem := strings.TrimSuffix(e.Name(), docExt); doc.ID != stem {
			s.logger.Warn("skipping file that is not a document", "file", e.Name(), "id", doc.ID)
			continue
		}
		items = append(items, doc.ListItem())
	}

	slices.SortStableFunc(items, func(a, b domain.DocumentListItem) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return items, nil
}

func (s *FileStore) Delete(id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.DocumentNotFound(id)
		}
		return fmt.Errorf("delete document %s: %w: %w", id, domain.ErrIO, err)
	}
	s.logger.Info("document deleted", "id", id)
	return nil
}

func (s *FileStore) Exists(id string) bool {
	p, err := s.path(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Export writes the stored document as pretty JSON to destPath. The
// destination is written directly, without the temp file dance.
func (s *FileStore) Export(id, destPath string) error {
	doc, err := s.Load(id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document %s: %w: %w", id, domain.ErrSerialization, err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("export document %s: %w: %w", id, domain.ErrIO, err)
	}
	return nil
}

// Import reads a document file from anywhere, gives it a fresh id so it
// cannot overwrite an existing document, and saves it.
func (s *FileStore) Import(srcPath string) (*domain.Document, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w: %w", srcPath, domain.ErrIO, err)
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("import %s: %w: %w", srcPath, domain.ErrSerialization, err)
	}
	doc.ID = uuid.New().String()
	doc.Touch()
	if err := s.Save(&doc); err != nil {
		return nil, err
	}
	s.logger.Info("document imported", "id", doc.ID, "source", srcPath)
	return &doc, nil
}

// SweepTemp removes *.json.tmp files older than olderThan, left behind by
// saves that crashed before the rename. It returns how many were removed.
func (s *FileStore) SweepTemp(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("sweep temp files: %w: %w", domain.ErrIO, err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), docExt+tempExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Warn("remove stale temp file", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("stale temp files removed", "count", removed)
	}
	return removed, nil
}
