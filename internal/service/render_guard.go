package service

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
)

// ExportedRenderGuard lets the _test package exercise the guard directly.
type ExportedRenderGuard = renderGuard

// renderGuard allows one render per output file at a time and tracks
// in-flight renders so shutdown can wait for them.
type renderGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// key makes "out.pdf" and "./out.pdf" the same file.
func (g *renderGuard) key(outputPath string) string {
	if abs, err := filepath.Abs(outputPath); err == nil {
		return abs
	}
	return filepath.Clean(outputPath)
}

// TryLock claims outputPath. It returns false while another render
// writes the same file.
func (g *renderGuard) TryLock(outputPath string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	k := g.key(outputPath)
	if _, ok := g.running[k]; ok {
		return false
	}
	g.running[k] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock releases outputPath. Must follow a successful TryLock.
func (g *renderGuard) Unlock(outputPath string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, g.key(outputPath))
	g.wg.Done()
}

// Running lists the output files being rendered, sorted.
func (g *renderGuard) Running() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.running))
	for k := range g.running {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// WaitAll blocks until every claimed render is released or ctx is done.
func (g *renderGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
