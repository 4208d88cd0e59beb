package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/readmeplay/internal/markup"
)

func TestProgress(t *testing.T) {
	r := markup.ScrollRegion{Start: 10, End: 20}

	tests := []struct {
		pos  float64
		want float64
	}{
		{pos: 0, want: 0},
		{pos: 10, want: 0},
		{pos: 15, want: 0.5},
		{pos: 20, want: 1},
		{pos: 99, want: 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Progress(tt.pos, r), 1e-9, "pos=%v", tt.pos)
	}

	assert.Equal(t, 0.0, Progress(5, markup.ScrollRegion{Start: 5, End: 5}), "zero-length region")
}

func TestScrollOffset(t *testing.T) {
	r := markup.ScrollRegion{Start: 10, End: 20}

	tests := []struct {
		name     string
		pos      float64
		bounds   Bounds
		viewport float64
		want     float64
	}{
		{name: "tall content at start", pos: 10, bounds: Bounds{Top: 200, Bottom: 800}, viewport: 300, want: 200},
		{name: "tall content halfway", pos: 15, bounds: Bounds{Top: 200, Bottom: 800}, viewport: 300, want: 350},
		{name: "tall content at end", pos: 20, bounds: Bounds{Top: 200, Bottom: 800}, viewport: 300, want: 500},
		{name: "clamped past end", pos: 40, bounds: Bounds{Top: 200, Bottom: 800}, viewport: 300, want: 500},
		{name: "content fits", pos: 15, bounds: Bounds{Top: 200, Bottom: 400}, viewport: 300, want: 200},
		{name: "content exactly fits", pos: 15, bounds: Bounds{Top: 200, Bottom: 500}, viewport: 300, want: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScrollOffset(tt.pos, r, tt.bounds, tt.viewport), 1e-9)
		})
	}
}

func TestScrollOffset_IsPure(t *testing.T) {
	r := markup.ScrollRegion{Start: 0, End: 8}
	b := Bounds{Top: 10, Bottom: 90}
	first := ScrollOffset(3, r, b, 20)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, ScrollOffset(3, r, b, 20))
	}
}

func TestActiveRegion_FirstMatchInDocumentOrder(t *testing.T) {
	regions := []markup.ScrollRegion{
		{Start: 0, End: 10, Ref: "a"},
		{Start: 5, End: 30, Ref: "b"},
		{Start: 40, End: 50, Ref: "c"},
	}

	r, ok := ActiveRegion(regions, 7)
	assert.True(t, ok)
	assert.Equal(t, markup.RangeRef("a"), r.Ref)

	r, ok = ActiveRegion(regions, 20)
	assert.True(t, ok)
	assert.Equal(t, markup.RangeRef("b"), r.Ref)

	_, ok = ActiveRegion(regions, 35)
	assert.False(t, ok)
}
