package markup

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Marker names.
const (
	markerExec        = "exec"
	markerExecEnd     = "/exec"
	markerInsert      = "insert"
	markerInsertEnd   = "/insert"
	markerScrollStart = "scroll-start"
	markerScrollEnd   = "scroll-end"
)

// RegionRefPrefix prefixes the id of every wrapped scroll region.
const RegionRefPrefix = "scroll-region-"

var (
	markerPattern = regexp.MustCompile(`(?s)<!--\s*(/?[a-z][a-z-]*)(.*?)-->`)
	attrPattern   = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_-]*)\s*=\s*(?:"((?:[^"\\]|\\.)*)"|'([^']*)'|([^\s"']+))`)
	unescaper     = strings.NewReplacer(`\"`, `"`, `\\`, `\`)
)

// marker is one annotation comment found in the source.
type marker struct {
	name  string
	attrs map[string]string
	start int // offset of "<!--"
	end   int // offset just past "-->"
	line  int
}

// Parse extracts commands and scroll regions from src.
//
// CRLF line endings are normalized to LF first; offsets, lines and
// Transformed all refer to the normalized text.
func Parse(src string) Result {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	p := &parser{src: src, lines: lineStarts(src)}
	p.scan()

	var res Result
	res.Execute = p.commands(markerExec, markerExecEnd, p.execPayload)
	res.Insert = p.commands(markerInsert, markerInsertEnd, p.insertPayload)
	res.Regions, res.Transformed = p.regions()
	res.Skipped = p.skipped

	sort.SliceStable(res.Skipped, func(i, j int) bool {
		return res.Skipped[i].Line < res.Skipped[j].Line
	})
	return res
}

type parser struct {
	src     string
	lines   []int
	markers []marker
	skipped []Skip
}

func (p *parser) scan() {
	for _, m := range markerPattern.FindAllStringSubmatchIndex(p.src, -1) {
		name := p.src[m[2]:m[3]]
		switch name {
		case markerExec, markerExecEnd, markerInsert, markerInsertEnd, markerScrollStart, markerScrollEnd:
		default:
			continue
		}
		p.markers = append(p.markers, marker{
			name:  name,
			attrs: parseAttrs(p.src[m[4]:m[5]]),
			start: m[0],
			end:   m[1],
			line:  p.lineOf(m[0]),
		})
	}
}

func (p *parser) skip(m marker, format string, args ...any) {
	p.skipped = append(p.skipped, Skip{
		Line:   m.line,
		Marker: m.name,
		Reason: fmt.Sprintf(format, args...),
	})
}

// pair matches each opening marker with the next closing marker. An opening
// marker followed by another opening marker is unterminated.
func (p *parser) pair(open, close string) [][2]marker {
	var (
		pairs   [][2]marker
		pending *marker
	)
	for i := range p.markers {
		m := p.markers[i]
		switch m.name {
		case open:
			if pending != nil {
				p.skip(*pending, "unterminated: next %q found before %q", open, close)
			}
			pending = &p.markers[i]
		case close:
			if pending == nil {
				p.skip(m, "closing marker without opening %q", open)
				continue
			}
			pairs = append(pairs, [2]marker{*pending, m})
			pending = nil
		}
	}
	if pending != nil {
		p.skip(*pending, "unterminated: missing %q", close)
	}
	return pairs
}

func (p *parser) commands(open, close string, build func(m marker, code string) (Payload, bool)) []TriggeredCommand {
	var out []TriggeredCommand
	for _, pr := range p.pair(open, close) {
		start, end := pr[0], pr[1]

		t, ok := p.time(start)
		if !ok {
			continue
		}
		code, ok := parseFence(p.src[start.end:end.start])
		if !ok {
			p.skip(start, "body is not a single fenced code block")
			continue
		}
		payload, ok := build(start, code)
		if !ok {
			continue
		}
		out = append(out, TriggeredCommand{
			Time:    t,
			Payload: payload,
			Offset:  start.start,
			Line:    start.line,
		})
	}
	return out
}

func (p *parser) execPayload(_ marker, code string) (Payload, bool) {
	return Execute{Code: code}, true
}

func (p *parser) insertPayload(m marker, code string) (Payload, bool) {
	file := m.attrs["filePath"]
	anchor := m.attrs["searchAnchor"]
	if file == "" {
		p.skip(m, "missing filePath")
		return nil, false
	}
	if anchor == "" {
		p.skip(m, "missing searchAnchor")
		return nil, false
	}
	return Insert{
		Code:         code,
		FilePath:     norm.NFC.String(file),
		SearchAnchor: norm.NFC.String(anchor),
	}, true
}

func (p *parser) time(m marker) (int, bool) {
	raw, ok := m.attrs["time"]
	if !ok {
		p.skip(m, "missing time")
		return 0, false
	}
	t, err := ParseTime(raw)
	if err != nil {
		p.skip(m, "%v", err)
		return 0, false
	}
	return t, true
}

// regions pairs scroll markers and rewrites each region's content as an
// addressable block.
func (p *parser) regions() ([]ScrollRegion, string) {
	var (
		out  []ScrollRegion
		b    strings.Builder
		last int
	)
	for _, pr := range p.pair(markerScrollStart, markerScrollEnd) {
		start, end := pr[0], pr[1]
		t1, ok := p.time(start)
		if !ok {
			continue
		}
		t2, ok := p.time(end)
		if !ok {
			continue
		}
		if t2 <= t1 {
			p.skip(start, "region ends at %d, not after start %d", t2, t1)
			continue
		}

		ref := RangeRef(fmt.Sprintf("%s%d", RegionRefPrefix, len(out)))
		out = append(out, ScrollRegion{Start: t1, End: t2, Ref: ref, Line: start.line})

		b.WriteString(p.src[last:start.start])
		fmt.Fprintf(&b, "<div id=%q data-start=\"%d\" data-end=\"%d\">\n\n", string(ref), t1, t2)
		b.WriteString(strings.Trim(p.src[start.end:end.start], "\n"))
		b.WriteString("\n\n</div>")
		last = end.end
	}
	b.WriteString(p.src[last:])
	return out, b.String()
}

func (p *parser) lineOf(offset int) int {
	return sort.Search(len(p.lines), func(i int) bool { return p.lines[i] > offset })
}

func lineStarts(src string) []int {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatchIndex(s, -1) {
		key := s[m[2]:m[3]]
		switch {
		case m[4] >= 0:
			attrs[key] = unescaper.Replace(s[m[4]:m[5]])
		case m[6] >= 0:
			attrs[key] = s[m[6]:m[7]]
		default:
			attrs[key] = s[m[8]:m[9]]
		}
	}
	return attrs
}

// parseFence returns the content of body when body is exactly one fenced
// code block, optionally surrounded by blank space.
func parseFence(body string) (string, bool) {
	body = strings.Trim(body, " \t\n")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return "", false
	}

	ch, n := fenceRun(body[:nl])
	if n < 3 {
		return "", false
	}
	if ch == '`' && strings.ContainsRune(body[n:nl], '`') {
		return "", false
	}

	lines := strings.Split(body[nl+1:], "\n")
	closing := lines[len(lines)-1]
	if !isClosingFence(closing, ch, n) {
		return "", false
	}
	for _, l := range lines[:len(lines)-1] {
		if isClosingFence(l, ch, n) {
			return "", false
		}
	}
	return strings.Join(lines[:len(lines)-1], "\n"), true
}

func fenceRun(line string) (byte, int) {
	if line == "" || (line[0] != '`' && line[0] != '~') {
		return 0, 0
	}
	ch := line[0]
	n := 0
	for n < len(line) && line[n] == ch {
		n++
	}
	return ch, n
}

func isClosingFence(line string, ch byte, minLen int) bool {
	line = strings.TrimSpace(line)
	c, n := fenceRun(line)
	return c == ch && n >= minLen && n == len(line)
}
