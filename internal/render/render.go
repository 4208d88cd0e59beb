// Package render turns a transformed document into terminal lines and
// provides the region geometry and viewport the scheduler scrolls.
package render

import (
	"regexp"
	"strings"
)

// Renderer turns transformed markdown into displayable text.
type Renderer interface {
	Render(transformed string) string
}

var commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)

// Plain renders markdown as-is with annotation comments removed. A line
// that held nothing but comments is dropped entirely.
type Plain struct{}

// Render implements Renderer.
func (Plain) Render(transformed string) string {
	lines := strings.Split(transformed, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.Contains(line, "<!--") {
			out = append(out, line)
			continue
		}
		stripped := commentPattern.ReplaceAllString(line, "")
		if strings.TrimSpace(stripped) == "" {
			continue
		}
		out = append(out, stripped)
	}
	// Multi-line comments span lines; sweep what the per-line pass missed.
	return commentPattern.ReplaceAllString(strings.Join(out, "\n"), "")
}
