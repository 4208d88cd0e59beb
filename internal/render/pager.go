package render

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// DefaultHeight is the pager height used when none is configured.
const DefaultHeight = 20

// Pager is a terminal viewport over a Document. It implements
// scheduler.Viewport; offsets are in lines.
//
// The window is printed whenever the integer top line changes, so small
// offset changes during a scroll do not flood the terminal.
type Pager struct {
	w      io.Writer
	doc    *Document
	height int
	top    int
}

// NewPager creates a pager of height lines writing to w.
func NewPager(w io.Writer, doc *Document, height int) *Pager {
	if height <= 0 {
		height = DefaultHeight
	}
	return &Pager{w: w, doc: doc, height: height, top: -1}
}

// Height implements scheduler.Viewport.
func (p *Pager) Height() float64 {
	return float64(p.height)
}

// Top returns the first visible line, or -1 before anything is shown.
func (p *Pager) Top() int {
	return p.top
}

// ScrollTo implements scheduler.Viewport.
func (p *Pager) ScrollTo(offset float64) {
	if math.IsNaN(offset) {
		return
	}
	top := int(math.Floor(offset))
	if maxTop := p.doc.Len() - p.height; top > maxTop {
		top = maxTop
	}
	if top < 0 {
		top = 0
	}
	if top == p.top {
		return
	}
	p.top = top
	p.print()
}

// Show prints the current window, starting at the top of the document if
// nothing has been shown yet.
func (p *Pager) Show() {
	if p.top < 0 {
		p.top = 0
	}
	p.print()
}

func (p *Pager) print() {
	end := min(p.top+p.height, p.doc.Len())
	var b strings.Builder
	fmt.Fprintf(&b, "--- lines %d-%d of %d ---\n", p.top+1, end, p.doc.Len())
	for _, line := range p.doc.Lines[p.top:end] {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, _ = io.WriteString(p.w, b.String())
}
