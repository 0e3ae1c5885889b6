package mcpserver

import (
	"testing"

	"blockdoc/internal/domain"
)

const a4W, a4H = 793.7, 1122.5

func block(id string, x, y, w, h float64) domain.Block {
	return domain.Block{
		ID:       id,
		Position: domain.Position{X: x, Y: y},
		Size:     domain.Size{Width: w, Height: h},
	}
}

func TestNextPosition_EmptyPage(t *testing.T) {
	le := NewLayoutEngine()
	x, y := le.NextPosition(nil, 400, 100, a4W, a4H)
	if x != 0 || y != 0 {
		t.Errorf("expected (0, 0) for an empty page, got (%.0f, %.0f)", x, y)
	}
}

func TestNextPosition_AvoidsExistingBlocks(t *testing.T) {
	le := NewLayoutEngine()
	existing := []domain.Block{
		block("a", 0, 0, 400, 100),
		block("b", 0, 120, 700, 300),
	}
	x, y := le.NextPosition(existing, 300, 100, a4W, a4H)

	r := rect{x, y, 300, 100}
	for _, b := range existing {
		br := blockRect(b)
		padded := rect{br.x - Padding, br.y - Padding, br.w + Padding*2, br.h + Padding*2}
		if r.intersects(padded) {
			t.Errorf("position (%.0f, %.0f) overlaps block %s", x, y, b.ID)
		}
	}
	if x+300 > a4W {
		t.Errorf("position (%.0f, %.0f) runs off the page", x, y)
	}
}

func TestNextPosition_FullPageFallsBelow(t *testing.T) {
	le := NewLayoutEngine()
	existing := []domain.Block{block("a", 0, 0, a4W, a4H)}
	x, y := le.NextPosition(existing, 200, 100, a4W, a4H)
	if x != 0 || y < a4H {
		t.Errorf("expected a position below the page, got (%.0f, %.0f)", x, y)
	}
}

func TestArrangeGroup(t *testing.T) {
	le := NewLayoutEngine()
	blocks := []domain.Block{
		block("1", 300, 300, 300, 200),
		block("2", 0, 0, 300, 200),
		block("3", 50, 50, 300, 200),
	}

	arranged := le.ArrangeGroup(blocks, 0, 0, a4W)

	for i := 0; i < len(arranged); i++ {
		if arranged[i].Position.X+arranged[i].Size.Width > a4W {
			t.Errorf("block %d runs off the page", i)
		}
		for j := i + 1; j < len(arranged); j++ {
			if blockRect(arranged[i]).intersects(blockRect(arranged[j])) {
				t.Errorf("blocks %d and %d overlap", i, j)
			}
		}
	}
	if arranged[2].Position.Y == 0 {
		t.Error("expected the third block to wrap to a new row")
	}
}

func TestSnap(t *testing.T) {
	le := NewLayoutEngine()
	tests := []struct {
		input, want float64
	}{
		{0, 0},
		{4, 0},
		{5, 10},
		{14, 10},
		{15, 20},
		{100, 100},
	}
	for _, tt := range tests {
		got := le.snap(tt.input)
		if got != tt.want {
			t.Errorf("snap(%.0f) = %.0f, want %.0f", tt.input, got, tt.want)
		}
	}
}
