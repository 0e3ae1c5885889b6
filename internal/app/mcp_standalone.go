package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"blockdoc/internal/config"
	mcpserver "blockdoc/internal/mcp"
)

// noopEmitter is a no-op EventEmitter used in MCP-only mode (no Wails frontend).
// A running desktop app sees the changes through its store watcher.
type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with no GUI.
// Logs go to stderr since stdout carries the protocol.
func ServeMCP(storageDir string) error {
	cfg, err := config.Load(storageDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg, os.Stderr)

	svc, err := openServices(cfg, noopEmitter{}, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := mcpserver.New(mcpserver.Deps{
		Documents: svc.docs,
		Renders:   svc.renders,
		Tables:    svc.tables,
		Logger:    logger,
	})
	err = srv.ServeStdio()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc.renders.Wait(ctx)

	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
