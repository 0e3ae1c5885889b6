package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PageSizePreset names a standard paper size. The string values are the
// on-disk tags and must not change.
type PageSizePreset string

const (
	PageA4     PageSizePreset = "A4"
	PageA3     PageSizePreset = "A3"
	PageA5     PageSizePreset = "A5"
	PageLetter PageSizePreset = "LETTER"
	PageLegal  PageSizePreset = "LEGAL"
	PageCustom PageSizePreset = "CUSTOM"
)

var presetMM = map[PageSizePreset][2]float64{
	PageA4:     {210, 297},
	PageA3:     {297, 420},
	PageA5:     {148, 210},
	PageLetter: {215.9, 279.4},
	PageLegal:  {215.9, 355.6},
}

// PageSize is a preset or, when Preset is PageCustom, an explicit size in
// millimetres. Presets are written as "A4"; custom sizes as
// {"CUSTOM":{"width":w,"height":h}}.
type PageSize struct {
	Preset PageSizePreset
	Width  float64
	Height float64
}

// CustomPageSize returns a custom size in millimetres.
func CustomPageSize(widthMM, heightMM float64) PageSize {
	return PageSize{Preset: PageCustom, Width: widthMM, Height: heightMM}
}

// DimensionsMM returns width and height in millimetres.
func (s PageSize) DimensionsMM() (float64, float64) {
	if s.Preset == PageCustom {
		return s.Width, s.Height
	}
	d := presetMM[s.Preset]
	return d[0], d[1]
}

const pxPerMM = 96.0 / 25.4

// DimensionsPX returns width and height in pixels at 96 DPI.
func (s PageSize) DimensionsPX() (float64, float64) {
	w, h := s.DimensionsMM()
	return w * pxPerMM, h * pxPerMM
}

type customSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s PageSize) MarshalJSON() ([]byte, error) {
	if s.Preset == PageCustom {
		return json.Marshal(map[string]customSize{
			string(PageCustom): {Width: s.Width, Height: s.Height},
		})
	}
	return json.Marshal(string(s.Preset))
}

func (s *PageSize) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		p := PageSizePreset(name)
		if _, ok := presetMM[p]; !ok {
			return fmt.Errorf("unknown page size %q", name)
		}
		*s = PageSize{Preset: p}
		return nil
	}

	var custom map[string]customSize
	if err := json.Unmarshal(data, &custom); err != nil {
		return fmt.Errorf("decode page size: %w", err)
	}
	c, ok := custom[string(PageCustom)]
	if !ok || len(custom) != 1 {
		return fmt.Errorf("decode page size: expected a preset name or a CUSTOM object")
	}
	*s = CustomPageSize(c.Width, c.Height)
	return nil
}

type PageOrientation string

const (
	Portrait  PageOrientation = "portrait"
	Landscape PageOrientation = "landscape"
)

// PageMargins in millimetres.
type PageMargins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

type Page struct {
	ID          string          `json:"id"`
	Size        PageSize        `json:"size"`
	Orientation PageOrientation `json:"orientation"`
	Margins     PageMargins     `json:"margins"`
	Background  string          `json:"background,omitempty"`
}

// NewPage returns an A4 portrait page with 20 mm margins.
func NewPage() Page {
	return Page{
		ID:          uuid.New().String(),
		Size:        PageSize{Preset: PageA4},
		Orientation: Portrait,
		Margins:     PageMargins{Top: 20, Right: 20, Bottom: 20, Left: 20},
	}
}

// DimensionsMM is the oriented page size: landscape swaps the preset's
// width and height.
func (p Page) DimensionsMM() (float64, float64) {
	w, h := p.Size.DimensionsMM()
	if p.Orientation == Landscape {
		return h, w
	}
	return w, h
}

// DimensionsPX is DimensionsMM at 96 DPI.
func (p Page) DimensionsPX() (float64, float64) {
	w, h := p.DimensionsMM()
	return w * pxPerMM, h * pxPerMM
}
