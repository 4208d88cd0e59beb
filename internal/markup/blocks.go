package markup

import "strings"

// CodeBlock is a fenced code block anywhere in the document, annotated or
// not. Index is its zero-based position in document order.
type CodeBlock struct {
	Index int    `json:"index"`
	Lang  string `json:"lang,omitempty"`
	Code  string `json:"code"`
	Line  int    `json:"line"`
}

// CodeBlocks lists every fenced code block in src for manual execution.
// An unclosed fence runs to the end of the document.
func CodeBlocks(src string) []CodeBlock {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")

	var (
		out   []CodeBlock
		open  bool
		ch    byte
		n     int
		start int
		lang  string
		body  []string
	)
	for i, raw := range lines {
		line := strings.TrimLeft(raw, " \t")
		if !open {
			c, k := fenceRun(line)
			if k < 3 || (c == '`' && strings.ContainsRune(line[k:], '`')) {
				continue
			}
			open, ch, n, start = true, c, k, i+1
			lang = strings.TrimSpace(line[k:])
			if f := strings.Fields(lang); len(f) > 0 {
				lang = f[0]
			}
			body = body[:0]
			continue
		}
		if isClosingFence(line, ch, n) {
			out = append(out, CodeBlock{
				Index: len(out),
				Lang:  lang,
				Code:  strings.Join(body, "\n"),
				Line:  start,
			})
			open = false
			continue
		}
		body = append(body, raw)
	}
	if open {
		out = append(out, CodeBlock{
			Index: len(out),
			Lang:  lang,
			Code:  strings.Join(body, "\n"),
			Line:  start,
		})
	}
	return out
}
