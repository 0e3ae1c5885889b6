package mcpserver

import (
	"math"

	"blockdoc/internal/domain"
)

const (
	GridSize = 10.0 // matches the editor's snap grid
	Padding  = 20.0
)

// LayoutEngine places agent-created blocks on a page so they don't
// overlap existing ones. Coordinates are page pixels.
type LayoutEngine struct {
	gridSize float64
	padding  float64
}

func NewLayoutEngine() *LayoutEngine {
	return &LayoutEngine{
		gridSize: GridSize,
		padding:  Padding,
	}
}

// snap rounds v to the nearest grid point.
func (le *LayoutEngine) snap(v float64) float64 {
	return math.Round(v/le.gridSize) * le.gridSize
}

// rect is a simple axis-aligned bounding box.
type rect struct {
	x, y, w, h float64
}

func (a rect) intersects(b rect) bool {
	return a.x < b.x+b.w && a.x+a.w > b.x &&
		a.y < b.y+b.h && a.y+a.h > b.y
}

func blockRect(b domain.Block) rect {
	return rect{b.Position.X, b.Position.Y, b.Size.Width, b.Size.Height}
}

// NextPosition finds the first free grid position, scanning rows top to
// bottom, for a block of size (newW, newH) on a page pageW wide. When the
// page has no room left the block goes below everything else.
func (le *LayoutEngine) NextPosition(existing []domain.Block, newW, newH, pageW, pageH float64) (float64, float64) {
	if len(existing) == 0 {
		return 0, 0
	}

	occupied := make([]rect, len(existing))
	for i, b := range existing {
		r := blockRect(b)
		occupied[i] = rect{
			x: r.x - le.padding,
			y: r.y - le.padding,
			w: r.w + le.padding*2,
			h: r.h + le.padding*2,
		}
	}

	candidate := rect{w: newW, h: newH}
	for y := 0.0; y+newH <= pageH; y += le.gridSize {
		for x := 0.0; x+newW <= pageW; x += le.gridSize {
			candidate.x = le.snap(x)
			candidate.y = le.snap(y)

			overlaps := false
			for _, occ := range occupied {
				if candidate.intersects(occ) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				return candidate.x, candidate.y
			}
		}
	}

	maxY := 0.0
	for _, b := range existing {
		if bottom := b.Position.Y + b.Size.Height; bottom > maxY {
			maxY = bottom
		}
	}
	return 0, le.snap(maxY + le.padding)
}

// ArrangeGroup stacks blocks in rows starting at (startX, startY),
// wrapping at pageW. It modifies positions in place and returns blocks.
func (le *LayoutEngine) ArrangeGroup(blocks []domain.Block, startX, startY, pageW float64) []domain.Block {
	x := le.snap(startX)
	y := le.snap(startY)
	rowHeight := 0.0

	for i := range blocks {
		if x > le.snap(startX) && x+blocks[i].Size.Width > pageW {
			x = le.snap(startX)
			y += le.snap(rowHeight + le.padding)
			rowHeight = 0
		}

		blocks[i].Position = domain.Position{X: x, Y: y}
		if blocks[i].Size.Height > rowHeight {
			rowHeight = blocks[i].Size.Height
		}
		x += le.snap(blocks[i].Size.Width + le.padding)
	}

	return blocks
}
