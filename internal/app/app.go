package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"blockdoc/internal/config"
	"blockdoc/internal/domain"
	mcpserver "blockdoc/internal/mcp"
	"blockdoc/internal/service"
	"blockdoc/internal/watch"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx        context.Context
	storageDir string
	cfg        *config.Config
	logger     *slog.Logger

	svc     *services
	docs    *service.DocumentService
	renders *service.RenderService
	tables  *service.TableService
	janitor *service.Janitor
	watcher *watch.StoreWatcher
	mcpHTTP *server.StreamableHTTPServer
}

// New creates a new App. A non-empty storageDir overrides the configured
// document directory.
func New(storageDir string) *App {
	return &App{storageDir: storageDir, logger: slog.Default()}
}

// Emit implements service.EventEmitter by delegating to wailsRuntime.
func (a *App) Emit(ctx context.Context, event string, data any) {
	wailsRuntime.EventsEmit(ctx, event, data)
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := config.Load(a.storageDir)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to load config: %v", err)
		return
	}
	a.cfg = cfg
	a.logger = newLogger(cfg, os.Stderr)
	slog.SetDefault(a.logger)

	svc, err := openServices(cfg, a, a.logger)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open storage: %v", err)
		return
	}
	a.svc = svc
	a.docs = svc.docs
	a.renders = svc.renders
	a.tables = svc.tables

	// Sweep leftovers from a crash before anything else writes.
	janitor, err := service.NewJanitor(a.docs, cfg.Janitor.Schedule, cfg.Janitor.TempMaxAge, a.logger)
	if err != nil {
		wailsRuntime.LogErrorf(ctx, "Failed to schedule janitor: %v", err)
	} else {
		janitor.RunOnce()
		janitor.Start()
		a.janitor = janitor
	}

	// Edits made by another process (standalone MCP, sync tools) refresh
	// the document list.
	watcher, err := watch.New(svc.store.Dir(), 0, func(id string, op watch.Op) {
		a.Emit(ctx, service.EventDocumentsChanged, map[string]string{
			"documentId": id,
			"op":         string(op),
		})
	}, a.logger)
	if err != nil {
		wailsRuntime.LogErrorf(ctx, "Failed to watch documents: %v", err)
	}
	a.watcher = watcher

	if cfg.MCP.Addr != "" {
		a.startMCP(cfg.MCP.Addr)
	}

	a.logger.Info("blockdoc started", "storage", svc.store.Dir(), "data", cfg.Data.Dir)
}

func (a *App) startMCP(addr string) {
	srv := mcpserver.New(mcpserver.Deps{
		Documents: a.docs,
		Renders:   a.renders,
		Tables:    a.tables,
		Logger:    a.logger,
	}).HTTPServer()
	a.mcpHTTP = srv
	go func() {
		a.logger.Info("mcp server listening", "addr", addr)
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("mcp server stopped", "error", err)
		}
	}()
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if a.mcpHTTP != nil {
		a.mcpHTTP.Shutdown(ctx)
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.janitor != nil {
		<-a.janitor.Stop().Done()
	}
	if a.renders != nil {
		a.renders.Wait(ctx)
	}
	if a.svc != nil {
		a.svc.Close()
	}
}

// fail logs err and turns it into the message the front end shows.
func (a *App) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	a.logger.Warn(op+" failed", "error", err)
	return errors.New(domain.UserMessage(err))
}
