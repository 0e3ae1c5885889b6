package app

import (
	"blockdoc/internal/domain"
	"blockdoc/internal/service"
)

// ============================================================
// Rendering
// ============================================================

func (a *App) GenerateRender(docID, outputPath string) (*service.RenderResult, error) {
	res, err := a.renders.GenerateRender(a.ctx, docID, outputPath)
	return res, a.fail("render", err)
}

func (a *App) GenerateRenderFromBlocks(blocks []domain.Block, outputPath string, widthMM, heightMM float64) (*service.RenderResult, error) {
	res, err := a.renders.GenerateRenderFromBlocks(a.ctx, blocks, outputPath, widthMM, heightMM)
	return res, a.fail("render", err)
}

func (a *App) CheckRenderWorker() (string, error) {
	v, err := a.renders.CheckRenderWorker(a.ctx)
	return v, a.fail("check render worker", err)
}

func (a *App) OpenRenderedFile(path string) error {
	return a.fail("open rendered file", a.renders.OpenRenderedFile(path))
}

// ActiveRenders lists output files still being written, so the UI can
// disable the export button for them.
func (a *App) ActiveRenders() []string {
	return a.renders.ActiveRenders()
}
