package scheduler

import "github.com/roach88/readmeplay/internal/markup"

// Bounds is a region's rendered extent in viewport scroll coordinates.
type Bounds struct {
	Top    float64
	Bottom float64
}

// Height returns the content height.
func (b Bounds) Height() float64 {
	return b.Bottom - b.Top
}

// Viewport is the scrollable view of the rendered document.
type Viewport interface {
	Height() float64
	ScrollTo(offset float64)
}

// Locator resolves a region reference to its rendered bounds.
type Locator interface {
	Locate(ref markup.RangeRef) (Bounds, bool)
}

// Progress returns how far pos is through region, clamped to [0, 1].
// A zero-length region has progress 0.
func Progress(pos float64, region markup.ScrollRegion) float64 {
	span := float64(region.End - region.Start)
	if span <= 0 {
		return 0
	}
	p := (pos - float64(region.Start)) / span
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// ScrollOffset maps a clock position to a scroll offset within region.
//
// Content taller than the viewport scrolls linearly from its top (progress
// 0) to the offset that puts its bottom at the bottom of the viewport
// (progress 1). Content that fits is pinned to its top. The result depends
// only on the arguments.
func ScrollOffset(pos float64, region markup.ScrollRegion, b Bounds, viewportHeight float64) float64 {
	if b.Height() <= viewportHeight {
		return b.Top
	}
	end := b.Bottom - viewportHeight
	return b.Top + Progress(pos, region)*(end-b.Top)
}

// ActiveRegion returns the first region, in document order, whose
// [Start, End] contains pos.
func ActiveRegion(regions []markup.ScrollRegion, pos float64) (markup.ScrollRegion, bool) {
	for _, r := range regions {
		if float64(r.Start) <= pos && pos <= float64(r.End) {
			return r, true
		}
	}
	return markup.ScrollRegion{}, false
}
