package render

import (
	"regexp"
	"strings"

	"github.com/roach88/readmeplay/internal/markup"
	"github.com/roach88/readmeplay/internal/scheduler"
)

var (
	regionOpenPattern  = regexp.MustCompile(`^\s*<div id="(` + regexp.QuoteMeta(markup.RegionRefPrefix) + `\d+)"[^>]*>\s*$`)
	regionClosePattern = regexp.MustCompile(`^\s*</div>\s*$`)
	divOpenPattern     = regexp.MustCompile(`(?i)<div[\s>]`)
	divClosePattern    = regexp.MustCompile(`(?i)</div\s*>`)
)

// Span is a half-open range of display lines.
type Span struct {
	Start int
	End   int
}

// Document is rendered text split into display lines, with the line span
// of every scroll region. Region wrapper lines are not displayed.
type Document struct {
	Lines   []string
	regions map[markup.RangeRef]Span
	order   []markup.RangeRef
}

// NewDocument splits rendered text into lines and records region spans.
// A region whose closing tag is missing extends to the end of the text.
// Div blocks inside a region are balanced before a bare </div> is taken
// as the region's end.
func NewDocument(rendered string) *Document {
	d := &Document{regions: make(map[markup.RangeRef]Span)}

	type open struct {
		ref   markup.RangeRef
		start int
		depth int
	}
	var stack []open

	for _, line := range strings.Split(rendered, "\n") {
		if m := regionOpenPattern.FindStringSubmatch(line); m != nil {
			stack = append(stack, open{ref: markup.RangeRef(m[1]), start: len(d.Lines)})
			continue
		}
		if len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.depth == 0 && regionClosePattern.MatchString(line) {
				d.addRegion(top.ref, Span{Start: top.start, End: len(d.Lines)})
				stack = stack[:len(stack)-1]
				continue
			}
			top.depth += len(divOpenPattern.FindAllStringIndex(line, -1)) -
				len(divClosePattern.FindAllStringIndex(line, -1))
			if top.depth < 0 {
				top.depth = 0
			}
		}
		d.Lines = append(d.Lines, line)
	}
	for i := len(stack) - 1; i >= 0; i-- {
		d.addRegion(stack[i].ref, Span{Start: stack[i].start, End: len(d.Lines)})
	}
	return d
}

func (d *Document) addRegion(ref markup.RangeRef, s Span) {
	if _, ok := d.regions[ref]; !ok {
		d.order = append(d.order, ref)
	}
	d.regions[ref] = s
}

// Region returns the line span of ref.
func (d *Document) Region(ref markup.RangeRef) (Span, bool) {
	s, ok := d.regions[ref]
	return s, ok
}

// Regions returns the refs of every region in the order they closed.
func (d *Document) Regions() []markup.RangeRef {
	return append([]markup.RangeRef(nil), d.order...)
}

// Locate implements scheduler.Locator in line units.
func (d *Document) Locate(ref markup.RangeRef) (scheduler.Bounds, bool) {
	s, ok := d.regions[ref]
	if !ok {
		return scheduler.Bounds{}, false
	}
	return scheduler.Bounds{Top: float64(s.Start), Bottom: float64(s.End)}, true
}

// Len returns the number of display lines.
func (d *Document) Len() int {
	return len(d.Lines)
}
