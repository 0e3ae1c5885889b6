package app

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"blockdoc/internal/domain"
	"blockdoc/internal/service"
	"blockdoc/internal/storage"
)

// ============================================================
// Documents
// ============================================================

func (a *App) CreateDocument(title string) (*domain.Document, error) {
	doc, err := a.docs.CreateDocument(a.ctx, title)
	return doc, a.fail("create document", err)
}

func (a *App) SaveDocument(doc *domain.Document) (string, error) {
	id, err := a.docs.SaveDocument(a.ctx, doc)
	return id, a.fail("save document", err)
}

func (a *App) LoadDocument(id string) (*domain.Document, error) {
	doc, err := a.docs.LoadDocument(id)
	return doc, a.fail("load document", err)
}

func (a *App) ListDocuments() ([]domain.DocumentListItem, error) {
	items, err := a.docs.ListDocuments()
	return items, a.fail("list documents", err)
}

func (a *App) DeleteDocument(id string) error {
	return a.fail("delete document", a.docs.DeleteDocument(a.ctx, id))
}

func (a *App) ExportDocument(id, destPath string) error {
	return a.fail("export document", a.docs.ExportDocument(id, destPath))
}

func (a *App) ImportDocument(srcPath string) (*domain.Document, error) {
	doc, err := a.docs.ImportDocument(a.ctx, srcPath)
	return doc, a.fail("import document", err)
}

func (a *App) DocumentExists(id string) bool {
	return a.docs.DocumentExists(id)
}

func (a *App) UpdateDocumentMetadata(id string, patch service.MetadataPatch) (*domain.Document, error) {
	doc, err := a.docs.UpdateMetadata(a.ctx, id, patch)
	return doc, a.fail("update metadata", err)
}

// PickImportFile opens a native file picker for a document JSON file.
func (a *App) PickImportFile() (string, error) {
	return wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Import Document",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "BlockDoc Document", Pattern: "*.json"},
		},
	})
}

// PickExportPath asks where to write a document or a rendered PDF.
func (a *App) PickExportPath(defaultName, pattern string) (string, error) {
	return wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:           "Export",
		DefaultFilename: defaultName,
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: pattern, Pattern: pattern},
		},
	})
}

// ============================================================
// History
// ============================================================

func (a *App) UndoDocument(id string) (*domain.Document, error) {
	doc, err := a.docs.Undo(a.ctx, id)
	return doc, a.fail("undo", err)
}

func (a *App) RedoDocument(id string) (*domain.Document, error) {
	doc, err := a.docs.Redo(a.ctx, id)
	return doc, a.fail("redo", err)
}

func (a *App) DocumentHistory(id string) (*storage.HistoryTree, error) {
	tree, err := a.docs.History(id)
	return tree, a.fail("load history", err)
}
