// Package render runs the external render worker.
//
// A worker is a script under the scripts directory, started either through
// an interpreter ("python3 <script> args...") or directly when no
// interpreter is configured. Structured requests are passed as a single
// JSON argument and the worker answers with JSON on stdout. Every run has
// an explicit timeout; a worker that outlives it is killed and never
// retried.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"blockdoc/internal/domain"
)

const (
	DefaultRenderScript  = "document_generator/pdf_generator.py"
	DefaultRenderTimeout = 120 * time.Second

	checkTimeout = 10 * time.Second
	// waitDelay bounds how long Wait keeps the pipes open after the worker
	// is killed, for grandchildren that inherited them.
	waitDelay = 2 * time.Second
)

// DefaultInterpreter is python3, or python on Windows.
func DefaultInterpreter() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

type Config struct {
	// Interpreter runs the scripts. Empty means scripts are executed directly.
	Interpreter   string
	ScriptsDir    string
	RenderScript  string        // relative to ScriptsDir; DefaultRenderScript if empty
	RenderTimeout time.Duration // DefaultRenderTimeout if zero
}

// WorkerError is a worker that exited with a non-zero status.
type WorkerError struct {
	Script   string
	ExitCode int
	Stderr   string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s exited with code %d: %s", e.Script, e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *WorkerError) Is(target error) bool { return target == domain.ErrRenderWorker }

// Delegate is safe for concurrent use; every call spawns its own process.
type Delegate struct {
	cfg    Config
	logger *slog.Logger
}

// New checks that the scripts directory exists.
func New(cfg Config, logger *slog.Logger) (*Delegate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(cfg.ScriptsDir); err == nil {
		cfg.ScriptsDir = abs
	}
	info, err := os.Stat(cfg.ScriptsDir)
	if err != nil {
		return nil, fmt.Errorf("scripts directory %s: %w: %w", cfg.ScriptsDir, domain.ErrUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scripts directory %s: %w: not a directory", cfg.ScriptsDir, domain.ErrUnavailable)
	}
	if cfg.RenderScript == "" {
		cfg.RenderScript = DefaultRenderScript
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = DefaultRenderTimeout
	}
	return &Delegate{cfg: cfg, logger: logger.With("component", "render")}, nil
}

func (d *Delegate) Config() Config {
	return d.cfg
}

func (d *Delegate) command(ctx context.Context, scriptPath string, args []string) *exec.Cmd {
	if d.cfg.Interpreter == "" {
		return exec.CommandContext(ctx, scriptPath, args...)
	}
	return exec.CommandContext(ctx, d.cfg.Interpreter, append([]string{scriptPath}, args...)...)
}

// ExecuteScript runs script with args and returns its trimmed stdout.
// timeout must be positive.
func (d *Delegate) ExecuteScript(ctx context.Context, script string, args []string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		return "", &domain.ValidationError{Reason: "Worker timeout must be positive"}
	}
	scriptPath := filepath.Join(d.cfg.ScriptsDir, script)
	if _, err := os.Stat(scriptPath); err != nil {
		return "", fmt.Errorf("script %s: %w: %w", script, domain.ErrUnavailable, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := d.command(runCtx, scriptPath, args)
	cmd.Dir = d.cfg.ScriptsDir
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	d.logger.Debug("worker started", "script", script, "timeout", timeout)
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			d.logger.Warn("worker timed out", "script", script, "timeout", timeout)
			return "", fmt.Errorf("worker %s after %s: %w", script, timeout, domain.ErrTimeout)
		case ctx.Err() != nil:
			return "", fmt.Errorf("worker %s: %w: %w", script, domain.ErrRenderWorker, ctx.Err())
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
			return "", fmt.Errorf("start worker %s: %w: %w", script, domain.ErrUnavailable, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			d.logger.Warn("worker failed", "script", script, "exit_code", exitErr.ExitCode(), "stderr", stderr.String())
			return "", &WorkerError{Script: script, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("run worker %s: %w: %w", script, domain.ErrRenderWorker, err)
	}

	d.logger.Debug("worker finished", "script", script, "elapsed", elapsed)
	return strings.TrimSpace(stdout.String()), nil
}

// ExecuteScriptJSON passes input as one JSON argument and decodes the
// worker's stdout into out. When the whole output is not JSON the last
// line is tried, so workers may log progress before answering.
func (d *Delegate) ExecuteScriptJSON(ctx context.Context, script string, input any, timeout time.Duration, out any) error {
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encode worker request: %w: %w", domain.ErrSerialization, err)
	}
	stdout, err := d.ExecuteScript(ctx, script, []string{string(payload)}, timeout)
	if err != nil {
		return err
	}
	if err := decodeOutput(stdout, out); err != nil {
		return fmt.Errorf("worker %s: %w: invalid response: %w", script, domain.ErrRenderWorker, err)
	}
	return nil
}

func decodeOutput(stdout string, out any) error {
	err := json.Unmarshal([]byte(stdout), out)
	if err == nil {
		return nil
	}
	if i := strings.LastIndexByte(stdout, '\n'); i >= 0 {
		if lastErr := json.Unmarshal([]byte(strings.TrimSpace(stdout[i+1:])), out); lastErr == nil {
			return nil
		}
	}
	return err
}

type renderRequest struct {
	Blocks       []domain.Block `json:"blocks"`
	OutputPath   string         `json:"output_path"`
	PageWidthMM  float64        `json:"page_width_mm"`
	PageHeightMM float64        `json:"page_height_mm"`
}

type renderResponse struct {
	PDFPath string `json:"pdf_path"`
	Error   string `json:"error,omitempty"`
}

// Render asks the worker to write blocks to outputPath on a page of the
// given size and returns the path the worker reports. The reported file
// must exist.
func (d *Delegate) Render(ctx context.Context, blocks []domain.Block, outputPath string, widthMM, heightMM float64) (string, error) {
	if outputPath == "" {
		return "", &domain.ValidationError{Reason: "Output path cannot be empty"}
	}
	// The worker runs in the scripts directory, so it must not see a
	// path relative to ours.
	outputPath, err := filepath.Abs(outputPath)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w: %w", domain.ErrIO, err)
	}
	if blocks == nil {
		blocks = []domain.Block{}
	}
	req := renderRequest{
		Blocks:       blocks,
		OutputPath:   outputPath,
		PageWidthMM:  widthMM,
		PageHeightMM: heightMM,
	}

	var resp renderResponse
	if err := d.ExecuteScriptJSON(ctx, d.cfg.RenderScript, req, d.cfg.RenderTimeout, &resp); err != nil {
		return "", err
	}
	if resp.PDFPath == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("render: %w: %s", domain.ErrRenderWorker, resp.Error)
		}
		return "", fmt.Errorf("render: %w: invalid response: missing pdf_path", domain.ErrRenderWorker)
	}
	pdfPath := resp.PDFPath
	if !filepath.IsAbs(pdfPath) {
		pdfPath = filepath.Join(d.cfg.ScriptsDir, pdfPath)
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("render: %w: output missing: %s", domain.ErrRenderWorker, pdfPath)
	}

	d.logger.Info("document rendered", "path", pdfPath, "blocks", len(blocks))
	return pdfPath, nil
}

// CheckAvailability reports the interpreter version, or the render
// script's answer to --version when scripts run directly.
func (d *Delegate) CheckAvailability(ctx context.Context) (string, error) {
	if d.cfg.Interpreter == "" {
		out, err := d.ExecuteScript(ctx, d.cfg.RenderScript, []string{"--version"}, checkTimeout)
		if err != nil {
			// Only ErrUnavailable may match; the cause is kept as text.
			return "", fmt.Errorf("check render worker: %w: %v", domain.ErrUnavailable, err)
		}
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, d.cfg.Interpreter, "--version")
	cmd.WaitDelay = waitDelay
	// Older interpreters print the version on stderr.
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("check interpreter %s: %w: %w", d.cfg.Interpreter, domain.ErrUnavailable, err)
	}
	return strings.TrimSpace(string(out)), nil
}
