package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blockdoc/internal/dbclient"
	"blockdoc/internal/domain"
	"blockdoc/internal/secret"
)

// ─────────────────────────────────────────────────────────────
// Table Service: fills table blocks from external databases
// ─────────────────────────────────────────────────────────────

// TableService runs the query without holding the store lock and only
// takes it to write the result into the block.
type TableService struct {
	docs    *DocumentService
	fetch   func(ctx context.Context, q domain.TableQuery) (*dbclient.Table, error)
	secrets secret.Store // optional
	logger  *slog.Logger
}

func NewTableService(docs *DocumentService, logger *slog.Logger) *TableService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TableService{
		docs:   docs,
		fetch:  dbclient.Fetch,
		logger: logger.With("component", "tables"),
	}
}

// WithSecrets lets queries without a password use the one saved for
// their source.
func (s *TableService) WithSecrets(store secret.Store) *TableService {
	s.secrets = store
	return s
}

// SaveSourcePassword remembers password for src so documents and agents
// never need to carry it.
func (s *TableService) SaveSourcePassword(src domain.TableSource, password string) error {
	if s.secrets == nil {
		return &domain.ValidationError{Reason: "No secret store configured"}
	}
	if err := s.secrets.Set(secret.SourceKey(src), []byte(password)); err != nil {
		return fmt.Errorf("save password: %w: %w", domain.ErrIO, err)
	}
	return nil
}

func (s *TableService) ForgetSourcePassword(src domain.TableSource) error {
	if s.secrets == nil {
		return nil
	}
	return s.secrets.Delete(secret.SourceKey(src))
}

// FillTableFromQuery replaces the rows of a table block with the query
// result. Column widths survive when the column count is unchanged.
func (s *TableService) FillTableFromQuery(ctx context.Context, docID, blockID string, q domain.TableQuery) (*domain.Document, error) {
	b, err := s.docs.GetBlock(docID, blockID)
	if err != nil {
		return nil, err
	}
	if b.Type != domain.BlockTypeTable {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("Block '%s' is not a table", blockID)}
	}

	if q.Source.Password == "" && s.secrets != nil {
		pw, err := s.secrets.Get(secret.SourceKey(q.Source))
		if err != nil {
			s.logger.Warn("read saved password failed", "driver", q.Source.Driver, "error", err)
		}
		q.Source.Password = string(pw)
	}

	table, err := s.fetch(ctx, q)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("query %s: %w: %w", q.Source.Driver, domain.ErrSource, err)
	}
	s.logger.Info("table fetched", "driver", q.Source.Driver, "rows", len(table.Rows), "columns", len(table.Columns))

	return s.docs.UpdateBlockWith(ctx, docID, blockID, "fill table", func(b *domain.Block) error {
		// The block may have changed while the query ran.
		if b.Type != domain.BlockTypeTable {
			return &domain.ValidationError{Reason: fmt.Sprintf("Block '%s' is not a table", blockID)}
		}
		var widths []float64
		if tc, ok := b.Content.(domain.TableContent); ok {
			widths = tc.ColumnWidths
		}
		var header []string
		if q.IncludeHeader {
			header = table.Columns
		}
		b.Content = domain.TableFromRows(header, table.Rows, widths)
		return nil
	})
}
