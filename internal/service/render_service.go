package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"blockdoc/internal/domain"
	"blockdoc/internal/render"
)

// ─────────────────────────────────────────────────────────────
// Render Service: turns a stored document into a PDF
// ─────────────────────────────────────────────────────────────

// Renderer is implemented by render.Delegate.
type Renderer interface {
	Render(ctx context.Context, blocks []domain.Block, outputPath string, widthMM, heightMM float64) (string, error)
	CheckAvailability(ctx context.Context) (string, error)
}

// RenderResult is what the front end receives after a render.
type RenderResult struct {
	PDFPath   string `json:"pdf_path"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PageCount int    `json:"page_count,omitempty"`
}

// RenderService snapshots a document under the store lock and renders it
// outside the lock, so a slow worker never blocks editing.
type RenderService struct {
	docs       *DocumentService
	renderer   Renderer
	exportsDir string
	emitter    EventEmitter
	logger     *slog.Logger

	// inspect and open are replaced in tests.
	inspect func(path string) (int, error)
	open    func(path string) error

	running renderGuard
}

func NewRenderService(docs *DocumentService, renderer Renderer, exportsDir string, emitter EventEmitter, logger *slog.Logger) *RenderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderService{
		docs:       docs,
		renderer:   renderer,
		exportsDir: exportsDir,
		emitter:    emitter,
		logger:     logger.With("component", "render-service"),
		inspect:    render.Inspect,
		open:       openWithSystem,
	}
}

// GenerateRender renders a stored document. An empty outputPath writes
// <exportsDir>/<title>.pdf. The page size comes from the first page.
func (s *RenderService) GenerateRender(ctx context.Context, docID, outputPath string) (*RenderResult, error) {
	doc, err := s.docs.LoadDocument(docID)
	if err != nil {
		return nil, err
	}
	page, err := doc.FirstPage()
	if err != nil {
		return nil, err
	}

	if outputPath == "" {
		if err := os.MkdirAll(s.exportsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create exports directory: %w: %w", domain.ErrIO, err)
		}
		outputPath = filepath.Join(s.exportsDir, exportFileName(doc.Metadata.Title))
	}

	wMM, hMM := page.DimensionsMM()
	wPX, hPX := page.DimensionsPX()
	for _, b := range doc.Blocks {
		if err := domain.ValidateBlockInPage(b, wPX, hPX); err != nil {
			s.logger.Warn("block outside page", "document", docID, "block", b.ID, "reason", err)
		}
	}

	return s.renderBlocks(ctx, doc.Blocks, outputPath, wMM, hMM)
}

// GenerateRenderFromBlocks renders blocks that are not (yet) stored.
func (s *RenderService) GenerateRenderFromBlocks(ctx context.Context, blocks []domain.Block, outputPath string, widthMM, heightMM float64) (*RenderResult, error) {
	if widthMM <= 0 || heightMM <= 0 {
		return nil, &domain.ValidationError{Reason: "Page size must be positive"}
	}
	for _, b := range blocks {
		if err := domain.ValidateBlock(b); err != nil {
			return nil, err
		}
	}
	return s.renderBlocks(ctx, blocks, outputPath, widthMM, heightMM)
}

func (s *RenderService) renderBlocks(ctx context.Context, blocks []domain.Block, outputPath string, widthMM, heightMM float64) (*RenderResult, error) {
	if outputPath == "" {
		return nil, &domain.ValidationError{Reason: "Output path cannot be empty"}
	}
	if !s.running.TryLock(outputPath) {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("A render to %s is already running", outputPath)}
	}
	defer s.running.Unlock(outputPath)

	pdfPath, err := s.renderer.Render(ctx, blocks, outputPath, widthMM, heightMM)
	if err != nil {
		s.logger.Error("render failed", "output", outputPath, "error", err)
		return nil, err
	}

	result := &RenderResult{
		PDFPath: pdfPath,
		Success: true,
		Message: "PDF generated successfully",
	}
	if n, err := s.inspect(pdfPath); err != nil {
		s.logger.Warn("inspect rendered file failed", "path", pdfPath, "error", err)
	} else {
		result.PageCount = n
	}

	s.emitter.Emit(ctx, EventRenderDone, result)
	return result, nil
}

// CheckRenderWorker reports the worker's version string.
func (s *RenderService) CheckRenderWorker(ctx context.Context) (string, error) {
	return s.renderer.CheckAvailability(ctx)
}

// OpenRenderedFile hands path to the desktop's default viewer.
func (s *RenderService) OpenRenderedFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open %s: %w: %w", path, domain.ErrIO, err)
	}
	if err := s.open(path); err != nil {
		return fmt.Errorf("open %s: %w: %w", path, domain.ErrIO, err)
	}
	return nil
}

// ActiveRenders lists the output files of renders still running.
func (s *RenderService) ActiveRenders() []string {
	return s.running.Running()
}

// Wait blocks until in-flight renders finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *RenderService) Wait(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// exportFileName turns a title into a file name: spaces and path
// separators become underscores.
func exportFileName(title string) string {
	name := strings.NewReplacer(" ", "_", "/", "_", `\`, "_").Replace(strings.TrimSpace(title))
	if name == "" {
		name = "document"
	}
	return name + ".pdf"
}

func openWithSystem(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/C", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}
