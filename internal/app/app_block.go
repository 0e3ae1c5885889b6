package app

import (
	"fmt"

	"blockdoc/internal/domain"
)

// ============================================================
// Blocks
// ============================================================

// NewBlock returns a block of blockType at (x, y) with the editor's
// default size and content. It is not stored until AddBlock.
func (a *App) NewBlock(blockType string, x, y float64) (domain.Block, error) {
	t := domain.BlockType(blockType)
	if domain.DefaultContent(t) == nil {
		return domain.Block{}, a.fail("new block", &domain.ValidationError{Reason: fmt.Sprintf("Unknown block type: %s", blockType)})
	}
	return domain.NewBlock(t, domain.Position{X: x, Y: y}, domain.DefaultSize(t)), nil
}

func (a *App) AddBlock(docID string, block domain.Block) (*domain.Document, error) {
	doc, err := a.docs.AddBlock(a.ctx, docID, block)
	return doc, a.fail("add block", err)
}

func (a *App) UpdateBlock(docID string, block domain.Block) (*domain.Document, error) {
	doc, err := a.docs.UpdateBlock(a.ctx, docID, block)
	return doc, a.fail("update block", err)
}

func (a *App) DeleteBlock(docID, blockID string) (*domain.Document, error) {
	doc, err := a.docs.DeleteBlock(a.ctx, docID, blockID)
	return doc, a.fail("delete block", err)
}

func (a *App) ReorderBlocks(docID string, blockIDs []string) (*domain.Document, error) {
	doc, err := a.docs.ReorderBlocks(a.ctx, docID, blockIDs)
	return doc, a.fail("reorder blocks", err)
}

func (a *App) UpdateBlocksBulk(docID string, blocks []domain.Block) (*domain.Document, error) {
	doc, err := a.docs.UpdateBlocksBulk(a.ctx, docID, blocks)
	return doc, a.fail("update blocks", err)
}

func (a *App) GetBlock(docID, blockID string) (domain.Block, error) {
	b, err := a.docs.GetBlock(docID, blockID)
	return b, a.fail("get block", err)
}

// FillTableFromQuery replaces a table block's rows with a query result.
func (a *App) FillTableFromQuery(docID, blockID string, q domain.TableQuery) (*domain.Document, error) {
	doc, err := a.tables.FillTableFromQuery(a.ctx, docID, blockID, q)
	return doc, a.fail("fill table", err)
}

// SaveSourcePassword keeps a table source password out of the document.
func (a *App) SaveSourcePassword(src domain.TableSource, password string) error {
	return a.fail("save password", a.tables.SaveSourcePassword(src, password))
}

func (a *App) ForgetSourcePassword(src domain.TableSource) error {
	return a.fail("forget password", a.tables.ForgetSourcePassword(src))
}
