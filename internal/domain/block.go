package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type BlockType string

const (
	BlockTypeText   BlockType = "text"
	BlockTypeImage  BlockType = "image"
	BlockTypeTable  BlockType = "table"
	BlockTypeSpacer BlockType = "spacer"
)

// Position is the top-left corner of a block on the page, in pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size of a block in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Block is a positioned visual unit owned by exactly one Document.
// Content always holds the variant matching Type; decoding picks the
// variant from Type, never from the shape of the content object.
type Block struct {
	ID       string       `json:"id"`
	Type     BlockType    `json:"type"`
	Position Position     `json:"position"`
	Size     Size         `json:"size"`
	Content  BlockContent `json:"content"`
	Styles   *BlockStyles `json:"styles,omitempty"`
	ZIndex   int          `json:"zIndex"`
	Locked   bool         `json:"locked,omitempty"`
}

// BlockContent is implemented by TextContent, ImageContent, TableContent
// and SpacerContent.
type BlockContent interface {
	Kind() BlockType
}

type TextAlignment string

const (
	AlignLeft    TextAlignment = "left"
	AlignCenter  TextAlignment = "center"
	AlignRight   TextAlignment = "right"
	AlignJustify TextAlignment = "justify"
)

type TextContent struct {
	Text       string        `json:"text"`
	FontSize   float64       `json:"fontSize"`
	FontFamily string        `json:"fontFamily"`
	FontWeight int           `json:"fontWeight"`
	Color      string        `json:"color"`
	Alignment  TextAlignment `json:"alignment"`
}

func (TextContent) Kind() BlockType { return BlockTypeText }

type ImageFit string

const (
	FitCover   ImageFit = "cover"
	FitContain ImageFit = "contain"
	FitFill    ImageFit = "fill"
	FitNone    ImageFit = "none"
)

// ImageContent references an image by file path or data URL.
type ImageContent struct {
	Src string   `json:"src"`
	Alt string   `json:"alt"`
	Fit ImageFit `json:"fit,omitempty"`
}

func (ImageContent) Kind() BlockType { return BlockTypeImage }

type TableContent struct {
	Rows         []TableRow `json:"rows"`
	ColumnWidths []float64  `json:"columnWidths"`
}

func (TableContent) Kind() BlockType { return BlockTypeTable }

type TableRow struct {
	Cells []TableCell `json:"cells"`
}

type TableCell struct {
	Content string      `json:"content"`
	Styles  *CellStyles `json:"styles,omitempty"`
}

type CellStyles struct {
	Background string `json:"background,omitempty"`
	Color      string `json:"color,omitempty"`
	Bold       *bool  `json:"bold,omitempty"`
}

// SpacerContent carries no data; it is written as {}.
type SpacerContent struct{}

func (SpacerContent) Kind() BlockType { return BlockTypeSpacer }

// BlockStyles is the optional visual overlay of a block.
type BlockStyles struct {
	Background string       `json:"background,omitempty"`
	Border     *BorderStyle `json:"border,omitempty"`
	Padding    *Padding     `json:"padding,omitempty"`
	Shadow     string       `json:"shadow,omitempty"`
	Opacity    *float64     `json:"opacity,omitempty"`
}

type BorderStyle struct {
	Width float64 `json:"width"`
	Color string  `json:"color"`
	Style string  `json:"style"` // solid, dashed, dotted
}

type Padding struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// UnmarshalJSON decodes the content object into the variant named by "type".
func (b *Block) UnmarshalJSON(data []byte) error {
	type plain Block
	var raw struct {
		plain
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, err := decodeContent(raw.Type, raw.Content)
	if err != nil {
		return fmt.Errorf("block %s: %w", raw.ID, err)
	}
	*b = Block(raw.plain)
	b.Content = content
	return nil
}

func decodeContent(t BlockType, raw json.RawMessage) (BlockContent, error) {
	empty := len(raw) == 0 || string(raw) == "null"
	switch t {
	case BlockTypeSpacer:
		return SpacerContent{}, nil
	case BlockTypeText:
		if empty {
			return nil, nil
		}
		var c TextContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode text content: %w", err)
		}
		return c, nil
	case BlockTypeImage:
		if empty {
			return nil, nil
		}
		var c ImageContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode image content: %w", err)
		}
		return c, nil
	case BlockTypeTable:
		if empty {
			return nil, nil
		}
		var c TableContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode table content: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown block type %q", t)
	}
}

// NewBlock creates a block of the given type with default content and a
// fresh id.
func NewBlock(t BlockType, pos Position, size Size) Block {
	return Block{
		ID:       uuid.New().String(),
		Type:     t,
		Position: pos,
		Size:     size,
		Content:  DefaultContent(t),
	}
}

// DefaultContent returns the content a freshly created block of type t
// starts with, or nil for an unknown type.
func DefaultContent(t BlockType) BlockContent {
	switch t {
	case BlockTypeText:
		return TextContent{
			FontSize:   16,
			FontFamily: "Inter",
			FontWeight: 400,
			Color:      "#000000",
			Alignment:  AlignLeft,
		}
	case BlockTypeImage:
		return ImageContent{Fit: FitContain}
	case BlockTypeTable:
		return TableContent{Rows: []TableRow{}, ColumnWidths: []float64{}}
	case BlockTypeSpacer:
		return SpacerContent{}
	}
	return nil
}

// DefaultSize is the size the editor gives a new block of type t.
func DefaultSize(t BlockType) Size {
	switch t {
	case BlockTypeImage:
		return Size{Width: 300, Height: 200}
	case BlockTypeTable:
		return Size{Width: 500, Height: 300}
	case BlockTypeSpacer:
		return Size{Width: 400, Height: 50}
	default:
		return Size{Width: 400, Height: 100}
	}
}

// TableFromRows builds table content from a header and string rows.
// A nil header adds no header row. Existing column widths are kept only
// when they still match the column count.
func TableFromRows(header []string, rows [][]string, widths []float64) TableContent {
	t := TableContent{Rows: []TableRow{}, ColumnWidths: []float64{}}
	if header != nil {
		bold := true
		row := TableRow{Cells: make([]TableCell, len(header))}
		for i, h := range header {
			row.Cells[i] = TableCell{Content: h, Styles: &CellStyles{Bold: &bold}}
		}
		t.Rows = append(t.Rows, row)
	}
	for _, r := range rows {
		row := TableRow{Cells: make([]TableCell, len(r))}
		for i, v := range r {
			row.Cells[i] = TableCell{Content: v}
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) > 0 && len(widths) == len(t.Rows[0].Cells) {
		t.ColumnWidths = append(t.ColumnWidths, widths...)
	}
	return t
}
