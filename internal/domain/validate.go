package domain

import (
	"strings"
)

var namedColors = map[string]bool{
	"black":       true,
	"white":       true,
	"red":         true,
	"green":       true,
	"blue":        true,
	"yellow":      true,
	"gray":        true,
	"transparent": true,
}

// ValidateBlock checks geometry first, then that Content matches Type,
// then the rules of the content variant. It returns a *ValidationError.
func ValidateBlock(b Block) error {
	if b.Size.Width <= 0 || b.Size.Height <= 0 {
		return invalid("Block size must be positive")
	}
	if b.Position.X < 0 || b.Position.Y < 0 {
		return invalid("Block position must be non-negative")
	}
	if b.Content == nil || b.Content.Kind() != b.Type {
		return invalid("Block type %s does not match content type", b.Type)
	}

	switch c := b.Content.(type) {
	case TextContent:
		if c.FontSize <= 0 {
			return invalid("Font size must be positive")
		}
		if c.FontFamily == "" {
			return invalid("Font family cannot be empty")
		}
		if !IsValidColor(c.Color) {
			return invalid("Invalid color: %s", c.Color)
		}
	case ImageContent:
		if c.Src == "" {
			return invalid("Image source cannot be empty")
		}
	case TableContent:
		if len(c.Rows) == 0 {
			return invalid("Table must have at least one row")
		}
		expected := len(c.Rows[0].Cells)
		for i, row := range c.Rows {
			if len(row.Cells) != expected {
				return invalid("Row %d has %d cells, expected %d", i, len(row.Cells), expected)
			}
		}
		if len(c.ColumnWidths) > 0 && len(c.ColumnWidths) != expected {
			return invalid("Column widths count must match cell count")
		}
	case SpacerContent:
	}
	return nil
}

// IsValidColor accepts #RGB, #RRGGBB, #RRGGBBAA, rgb(...)/rgba(...) and a
// small set of named colors.
func IsValidColor(color string) bool {
	switch {
	case strings.HasPrefix(color, "#"):
		hex := color[1:]
		if len(hex) != 3 && len(hex) != 6 && len(hex) != 8 {
			return false
		}
		for _, r := range hex {
			if !isHexDigit(r) {
				return false
			}
		}
		return true
	case strings.HasPrefix(color, "rgb(") || strings.HasPrefix(color, "rgba("):
		return strings.HasSuffix(color, ")")
	default:
		return namedColors[strings.ToLower(color)]
	}
}

func isHexDigit(r rune) bool {
	return ('0' <= r && r <= '9') || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F')
}

// ValidateBlockInPage reports a block that extends past the right or
// bottom edge of a page of the given pixel size.
func ValidateBlockInPage(b Block, pageWidth, pageHeight float64) error {
	right := b.Position.X + b.Size.Width
	bottom := b.Position.Y + b.Size.Height
	if right > pageWidth {
		return invalid("Block extends beyond page width (%g > %g)", right, pageWidth)
	}
	if bottom > pageHeight {
		return invalid("Block extends beyond page height (%g > %g)", bottom, pageHeight)
	}
	return nil
}
