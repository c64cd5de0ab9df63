// Package feed computes the virtual-scroll window over an ordered idea list,
// the feed orderings, and the card view model the UI shell renders.
package feed

import (
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Default geometry: 4 visible cards of 130px plus an 8px gap.
const (
	DefaultItemHeight     = 138
	DefaultVisible        = 4
	DefaultViewportHeight = DefaultItemHeight * DefaultVisible
	DefaultBuffer         = 2
	DefaultThreshold      = 5

	minThumbHeight = 20
)

// Geometry describes the scroll container.
type Geometry struct {
	ItemHeight     int `json:"item_height"`
	ViewportHeight int `json:"viewport_height"`
	Buffer         int `json:"buffer"`
	// Lists shorter than Threshold render every item and hide the scrollbar.
	Threshold int `json:"threshold"`
}

// DefaultGeometry returns the standard card list geometry.
func DefaultGeometry() Geometry {
	return Geometry{
		ItemHeight:     DefaultItemHeight,
		ViewportHeight: DefaultViewportHeight,
		Buffer:         DefaultBuffer,
		Threshold:      DefaultThreshold,
	}
}

// Validate checks that the geometry is usable.
func (g Geometry) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.ItemHeight, validation.Required, validation.Min(1)),
		validation.Field(&g.ViewportHeight, validation.Required, validation.Min(1)),
		validation.Field(&g.Buffer, validation.Min(0)),
		validation.Field(&g.Threshold, validation.Min(0)),
	)
}

// Window is the slice of the list to render for one scroll position.
type Window struct {
	Start int `json:"start"`
	// End is inclusive; -1 for an empty list.
	End int `json:"end"`
	// Offset is the scroll offset after clamping.
	Offset int `json:"offset"`
	// Top is the absolute position of the first rendered item.
	Top           int  `json:"top"`
	TotalHeight   int  `json:"total_height"`
	Count         int  `json:"count"`
	Length        int  `json:"length"`
	Virtualized   bool `json:"virtualized"`
	ShowScrollbar bool `json:"show_scrollbar"`
}

// Compute returns the window for a list of length items scrolled to offset.
// The offset is clamped to [0, max(0, TotalHeight-ViewportHeight)] so a stale
// offset after the list shrinks never points past the end.
func Compute(length, offset int, g Geometry) Window {
	if g.Validate() != nil {
		g = DefaultGeometry()
	}
	if length < 0 {
		length = 0
	}
	total := length * g.ItemHeight
	offset = clamp(offset, 0, max(0, total-g.ViewportHeight))

	w := Window{
		Offset:        offset,
		TotalHeight:   total,
		Length:        length,
		Virtualized:   length >= g.Threshold,
		ShowScrollbar: length >= g.Threshold,
		End:           -1,
	}
	if length == 0 {
		return w
	}
	if !w.Virtualized {
		w.End = length - 1
		w.Count = length
		return w
	}
	w.Start = max(0, offset/g.ItemHeight-g.Buffer)
	w.End = min(length-1, (offset+g.ViewportHeight)/g.ItemHeight+g.Buffer)
	w.Count = w.End - w.Start + 1
	w.Top = w.Start * g.ItemHeight
	return w
}

// Slice returns the items the window renders.
func Slice[T any](items []T, w Window) []T {
	if w.Count <= 0 || w.Start >= len(items) {
		return nil
	}
	end := min(w.End+1, len(items))
	return items[w.Start:end]
}

// Thumb is the external scrollbar handle, in pixels.
type Thumb struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Scrollbar positions the scrollbar thumb for w. The zero Thumb is returned
// when the scrollbar is hidden.
func Scrollbar(w Window, g Geometry) Thumb {
	if !w.ShowScrollbar || w.TotalHeight <= 0 {
		return Thumb{}
	}
	if g.Validate() != nil {
		g = DefaultGeometry()
	}
	c := float64(g.ViewportHeight)
	total := float64(w.TotalHeight)
	ratio := c * c / total
	thumb := Thumb{Height: max(minThumbHeight, ratio)}
	if scrollable := total - c; scrollable > 0 {
		thumb.Top = float64(w.Offset) / scrollable * (c - ratio)
	}
	return thumb
}

// Viewport tracks a scroll position over a list whose length can change.
type Viewport struct {
	mu     sync.Mutex
	g      Geometry
	length int
	offset int
}

// NewViewport creates a Viewport at offset 0.
func NewViewport(g Geometry) *Viewport {
	return &Viewport{g: g}
}

// SetLength updates the list length and re-clamps the offset.
func (v *Viewport) SetLength(n int) Window {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.length = n
	return v.current()
}

// Scroll moves to offset.
func (v *Viewport) Scroll(offset int) Window {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offset = offset
	return v.current()
}

// Current returns the window for the current state.
func (v *Viewport) Current() Window {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current()
}

func (v *Viewport) current() Window {
	w := Compute(v.length, v.offset, v.g)
	v.offset = w.Offset
	return w
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
