package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"blockdoc/internal/config"
	"blockdoc/internal/domain"
	"blockdoc/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Storage: config.StorageConfig{Dir: filepath.Join(dir, "docs")},
		Data:    config.DataConfig{Dir: filepath.Join(dir, "data")},
		Render: config.RenderConfig{
			ScriptsDir: filepath.Join(dir, "no-scripts"),
			Script:     "render.py",
			Timeout:    time.Second,
			ExportsDir: filepath.Join(dir, "exports"),
		},
	}
}

func TestOpenServices_WithoutRenderWorker(t *testing.T) {
	cfg := testConfig(t)
	emitter := &service.MockEmitter{}
	svc, err := openServices(cfg, emitter, newLogger(cfg, os.Stderr))
	if err != nil {
		t.Fatalf("openServices: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()
	doc, err := svc.docs.CreateDocument(ctx, "Offline")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if _, err := os.Stat(cfg.HistoryPath()); err != nil {
		t.Errorf("expected the history database in the data dir: %v", err)
	}

	if _, err := svc.renders.CheckRenderWorker(ctx); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := svc.renders.GenerateRender(ctx, doc.ID, ""); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from render, got %v", err)
	}
}

func TestApp_FailUsesUserMessage(t *testing.T) {
	a := New("")
	if err := a.fail("noop", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	err := a.fail("load document", domain.DocumentNotFound("abc"))
	if err == nil || err.Error() != "Document 'abc' not found" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestApp_NewBlock(t *testing.T) {
	a := New("")
	b, err := a.NewBlock("table", 10, 20)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if b.Position.X != 10 || b.Size != domain.DefaultSize(domain.BlockTypeTable) {
		t.Errorf("unexpected block %+v", b)
	}
	if _, err := a.NewBlock("video", 0, 0); err == nil || err.Error() != "Validation error: Unknown block type: video" {
		t.Fatalf("unexpected error %v", err)
	}
}
