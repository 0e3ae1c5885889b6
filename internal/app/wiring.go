package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"blockdoc/internal/config"
	"blockdoc/internal/domain"
	"blockdoc/internal/render"
	"blockdoc/internal/secret"
	"blockdoc/internal/service"
	"blockdoc/internal/storage"
)

// services is everything both the desktop app and the standalone MCP
// server need, built from one config.
type services struct {
	db      *storage.DB
	store   *storage.FileStore
	docs    *service.DocumentService
	renders *service.RenderService
	tables  *service.TableService
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
}

// openServices opens the document store and the history database and
// builds the command layer on top. A missing render worker only disables
// rendering.
func openServices(cfg *config.Config, emitter service.EventEmitter, logger *slog.Logger) (*services, error) {
	store, err := storage.NewFileStore(cfg.Storage.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	db, err := storage.New(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	var renderer service.Renderer
	delegate, err := render.New(render.Config{
		Interpreter:   cfg.Render.Interpreter,
		ScriptsDir:    cfg.Render.ScriptsDir,
		RenderScript:  cfg.Render.Script,
		RenderTimeout: cfg.Render.Timeout,
	}, logger)
	if err != nil {
		logger.Warn("render worker not available, rendering disabled", "error", err)
		renderer = unavailableRenderer{err: err}
	} else {
		renderer = delegate
	}

	docs := service.NewDocumentService(store, storage.NewHistoryStore(db, storage.DefaultHistoryLimit), emitter, logger)
	return &services{
		db:      db,
		store:   store,
		docs:    docs,
		renders: service.NewRenderService(docs, renderer, cfg.Render.ExportsDir, emitter, logger),
		tables:  service.NewTableService(docs, logger).WithSecrets(secret.Default()),
	}, nil
}

func (s *services) Close() error {
	return s.db.Close()
}

// unavailableRenderer stands in for the delegate when the scripts
// directory is missing, so every render reports why.
type unavailableRenderer struct{ err error }

func (r unavailableRenderer) Render(context.Context, []domain.Block, string, float64, float64) (string, error) {
	return "", r.err
}

func (r unavailableRenderer) CheckAvailability(context.Context) (string, error) {
	return "", r.err
}
