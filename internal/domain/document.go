package domain

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FormatVersion is written into every new document.
const FormatVersion = "1.0.0"

type DocumentMetadata struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Document is the aggregate root. It owns its pages and blocks; the block
// list is unordered, display order comes from ZIndex.
type Document struct {
	ID       string           `json:"id"`
	Metadata DocumentMetadata `json:"metadata"`
	Pages    []Page           `json:"pages"`
	Blocks   []Block          `json:"blocks"`
	Version  string           `json:"version,omitempty"`
}

// DocumentListItem is the listing projection of a stored Document.
type DocumentListItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	BlockCount  int       `json:"blockCount"`
	PageCount   int       `json:"pageCount"`
}

// DocumentStore is implemented by storage.FileStore. It is not safe for
// overlapping load/save sequences; callers serialize access.
type DocumentStore interface {
	Save(doc *Document) error
	Load(id string) (*Document, error)
	List() ([]DocumentListItem, error)
	Delete(id string) error
	Exists(id string) bool
	Export(id, destPath string) error
	Import(srcPath string) (*Document, error)
}

func now() time.Time { return time.Now().UTC() }

// NewDocument creates a document with one default page and no blocks.
func NewDocument(title string) *Document {
	ts := now()
	return &Document{
		ID: uuid.New().String(),
		Metadata: DocumentMetadata{
			Title:     title,
			CreatedAt: ts,
			UpdatedAt: ts,
		},
		Pages:   []Page{NewPage()},
		Blocks:  []Block{},
		Version: FormatVersion,
	}
}

// Touch sets the last-modified timestamp to now.
func (d *Document) Touch() {
	d.Metadata.UpdatedAt = now()
}

// AddBlock appends b without validating it.
func (d *Document) AddBlock(b Block) {
	d.Blocks = append(d.Blocks, b)
	d.Touch()
}

// UpdateBlock overwrites the block with b.ID in place.
func (d *Document) UpdateBlock(b Block) error {
	for i := range d.Blocks {
		if d.Blocks[i].ID == b.ID {
			d.Blocks[i] = b
			d.Touch()
			return nil
		}
	}
	return BlockNotFound(b.ID)
}

// RemoveBlock removes the first block with the given id and returns it.
func (d *Document) RemoveBlock(id string) (Block, bool) {
	for i := range d.Blocks {
		if d.Blocks[i].ID == id {
			removed := d.Blocks[i]
			d.Blocks = slices.Delete(d.Blocks, i, i+1)
			d.Touch()
			return removed, true
		}
	}
	return Block{}, false
}

func (d *Document) GetBlock(id string) (Block, bool) {
	for _, b := range d.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}

// ReorderBlocks stably sorts blocks by ZIndex ascending. The timestamp is
// touched even when the order does not change.
func (d *Document) ReorderBlocks() {
	slices.SortStableFunc(d.Blocks, func(a, b Block) int {
		return cmp.Compare(a.ZIndex, b.ZIndex)
	})
	d.Touch()
}

// SetZOrder assigns each listed block a ZIndex equal to its position in
// ids. Unknown ids are ignored; unlisted blocks keep their ZIndex.
func (d *Document) SetZOrder(ids []string) {
	for z, id := range ids {
		for i := range d.Blocks {
			if d.Blocks[i].ID == id {
				d.Blocks[i].ZIndex = z
				break
			}
		}
	}
}

// Validate checks the document-level invariants and every block.
func (d *Document) Validate() error {
	if len(d.Pages) == 0 {
		return invalid("Document must have at least one page")
	}
	for _, b := range d.Blocks {
		if err := ValidateBlock(b); err != nil {
			return err
		}
	}
	if strings.TrimSpace(d.Metadata.Title) == "" {
		return invalid("Document title cannot be empty")
	}
	return nil
}

func (d *Document) ListItem() DocumentListItem {
	return DocumentListItem{
		ID:          d.ID,
		Title:       d.Metadata.Title,
		Description: d.Metadata.Description,
		CreatedAt:   d.Metadata.CreatedAt,
		UpdatedAt:   d.Metadata.UpdatedAt,
		BlockCount:  len(d.Blocks),
		PageCount:   len(d.Pages),
	}
}

// FirstPage returns the page that sets the render size. Stored files
// are not validated on load, so a document may arrive without pages.
func (d *Document) FirstPage() (Page, error) {
	if len(d.Pages) == 0 {
		return Page{}, &ValidationError{Reason: "Document has no pages"}
	}
	return d.Pages[0], nil
}

// Clone returns a deep copy made through the JSON form.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	return &out, nil
}
