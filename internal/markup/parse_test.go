package markup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleExecute(t *testing.T) {
	src := "<!-- exec time=5 -->\n```\nx=1\n```\n<!-- /exec -->\n"

	res := Parse(src)

	require.Len(t, res.Execute, 1)
	assert.Empty(t, res.Insert)
	assert.Empty(t, res.Regions)
	assert.Empty(t, res.Skipped)

	cmd := res.Execute[0]
	assert.Equal(t, 5, cmd.Time)
	assert.Equal(t, Execute{Code: "x=1"}, cmd.Payload)
	assert.Equal(t, 0, cmd.Offset)
	assert.Equal(t, 1, cmd.Line)
}

func TestParse_Insert(t *testing.T) {
	src := `<!-- insert time=01:30 filePath="src/app.go" searchAnchor="func main() {" -->
~~~go
fmt.Println("hi")
~~~
<!-- /insert -->`

	res := Parse(src)

	require.Len(t, res.Insert, 1)
	assert.Equal(t, 90, res.Insert[0].Time)
	assert.Equal(t, Insert{
		Code:         `fmt.Println("hi")`,
		FilePath:     "src/app.go",
		SearchAnchor: "func main() {",
	}, res.Insert[0].Payload)
}

func TestParse_InsertQuotedEscapes(t *testing.T) {
	src := `<!-- insert time=1 filePath='a b.go' searchAnchor="say \"hi\"" -->
` + "```\nx\n```\n<!-- /insert -->"

	res := Parse(src)

	require.Len(t, res.Insert, 1)
	ins := res.Insert[0].Payload.(Insert)
	assert.Equal(t, "a b.go", ins.FilePath)
	assert.Equal(t, `say "hi"`, ins.SearchAnchor)
}

func TestParse_InsertNormalizesAnchor(t *testing.T) {
	// "e" + combining acute accent composes to U+00E9.
	src := "<!-- insert time=1 filePath=cafe\u0301.go searchAnchor=\"cafe\u0301\" -->\n```\nx\n```\n<!-- /insert -->"

	res := Parse(src)

	require.Len(t, res.Insert, 1)
	ins := res.Insert[0].Payload.(Insert)
	assert.Equal(t, "caf\u00e9.go", ins.FilePath)
	assert.Equal(t, "caf\u00e9", ins.SearchAnchor)
}

func TestParse_InsertMissingAttributes(t *testing.T) {
	src := "<!-- insert time=1 filePath=a.go -->\n```\nx\n```\n<!-- /insert -->\n" +
		"<!-- insert time=1 searchAnchor=main -->\n```\nx\n```\n<!-- /insert -->\n"

	res := Parse(src)

	assert.Empty(t, res.Insert)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "missing searchAnchor", res.Skipped[0].Reason)
	assert.Equal(t, "missing filePath", res.Skipped[1].Reason)
}

func TestParse_InvalidTimeIsDropped(t *testing.T) {
	src := "<!-- exec time=abc -->\n```\nrm -rf build\n```\n<!-- /exec -->\n" +
		"<!-- exec time=7 -->\n```\nok\n```\n<!-- /exec -->\n"

	res := Parse(src)

	require.Len(t, res.Execute, 1, "malformed time must not fire at zero")
	assert.Equal(t, 7, res.Execute[0].Time)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 1, res.Skipped[0].Line)
	assert.Equal(t, "exec", res.Skipped[0].Marker)
	assert.Contains(t, res.Skipped[0].Reason, "invalid time")
}

func TestParse_MissingTime(t *testing.T) {
	res := Parse("<!-- exec -->\n```\nx\n```\n<!-- /exec -->")

	assert.Empty(t, res.Execute)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "missing time", res.Skipped[0].Reason)
}

func TestParse_Unterminated(t *testing.T) {
	src := "<!-- exec time=1 -->\n```\nlost\n```\n" +
		"<!-- exec time=2 -->\n```\nkept\n```\n<!-- /exec -->\n" +
		"<!-- exec time=3 -->\n```\ntrailing\n```\n"

	res := Parse(src)

	require.Len(t, res.Execute, 1)
	assert.Equal(t, Execute{Code: "kept"}, res.Execute[0].Payload)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, 1, res.Skipped[0].Line)
	assert.Contains(t, res.Skipped[0].Reason, "unterminated")
	assert.Equal(t, 10, res.Skipped[1].Line)
	assert.Contains(t, res.Skipped[1].Reason, "unterminated")
}

func TestParse_StrayClosingMarker(t *testing.T) {
	res := Parse("<!-- /exec -->\n")

	assert.Empty(t, res.Execute)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "/exec", res.Skipped[0].Marker)
}

func TestParse_BodyMustBeSingleFence(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no fence", "just text"},
		{"unclosed fence", "```\ncode"},
		{"text after fence", "```\ncode\n```\nmore"},
		{"two fences", "```\na\n```\n```\nb\n```"},
		{"short fence", "``\ncode\n``"},
		{"mismatched fence", "```\ncode\n~~~"},
		{"backtick in info string", "``` a`b\ncode\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse("<!-- exec time=1 -->\n" + tt.body + "\n<!-- /exec -->")
			assert.Empty(t, res.Execute)
			require.Len(t, res.Skipped, 1)
			assert.Equal(t, "body is not a single fenced code block", res.Skipped[0].Reason)
		})
	}
}

func TestParse_FenceVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"info string", "```bash title=x\necho 1\n```", "echo 1"},
		{"tilde", "~~~\necho 1\n~~~", "echo 1"},
		{"longer closing fence", "```\necho 1\n`````", "echo 1"},
		{"nested shorter fence", "````\n```\ninner\n```\n````", "```\ninner\n```"},
		{"empty", "```\n```", ""},
		{"multi line", "```\na\n\nb\n```", "a\n\nb"},
		{"indented", "  ```\n  a\n  ```", "  a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse("<!-- exec time=1 -->\n" + tt.body + "\n<!-- /exec -->")
			require.Len(t, res.Execute, 1)
			assert.Equal(t, Execute{Code: tt.want}, res.Execute[0].Payload)
		})
	}
}

func TestParse_CRLF(t *testing.T) {
	res := Parse("<!-- exec time=2 -->\r\n```\r\na\r\nb\r\n```\r\n<!-- /exec -->\r\n")

	require.Len(t, res.Execute, 1)
	assert.Equal(t, Execute{Code: "a\nb"}, res.Execute[0].Payload)
}

func TestParse_DocumentOrderNotTimeOrder(t *testing.T) {
	src := "<!-- exec time=30 -->\n```\nlate\n```\n<!-- /exec -->\n" +
		"<!-- insert time=5 filePath=f searchAnchor=a -->\n```\nmid\n```\n<!-- /insert -->\n" +
		"<!-- exec time=1 -->\n```\nearly\n```\n<!-- /exec -->\n"

	res := Parse(src)

	require.Len(t, res.Execute, 2)
	assert.Equal(t, 30, res.Execute[0].Time)
	assert.Equal(t, 1, res.Execute[1].Time)

	merged := res.Commands()
	require.Len(t, merged, 3)
	assert.Equal(t, []int{30, 5, 1}, []int{merged[0].Time, merged[1].Time, merged[2].Time})
	assert.Equal(t, KindInsert, merged[1].Payload.Kind())
}

func TestParse_ScrollRegions(t *testing.T) {
	src := "intro\n" +
		"<!-- scroll-start time=10 -->\nfirst\n<!-- scroll-end time=20 -->\n" +
		"<!-- scroll-start time=0:15 -->\nsecond\n<!-- scroll-end time=1:00 -->\n"

	res := Parse(src)

	require.Len(t, res.Regions, 2)
	assert.Equal(t, ScrollRegion{Start: 10, End: 20, Ref: "scroll-region-0", Line: 2}, res.Regions[0])
	assert.Equal(t, ScrollRegion{Start: 15, End: 60, Ref: "scroll-region-1", Line: 5}, res.Regions[1])
	assert.Contains(t, res.Transformed, "<div id=\"scroll-region-0\" data-start=\"10\" data-end=\"20\">\n\nfirst\n\n</div>")
	assert.NotContains(t, res.Transformed, "scroll-start")
}

func TestParse_ScrollRegionMustEndAfterStart(t *testing.T) {
	src := "<!-- scroll-start time=20 -->\nx\n<!-- scroll-end time=20 -->\n" +
		"<!-- scroll-start time=5 -->\ny\n<!-- scroll-end time=bad -->\n"

	res := Parse(src)

	assert.Empty(t, res.Regions)
	assert.Len(t, res.Skipped, 2)
	assert.Equal(t, src, res.Transformed, "skipped regions are not rewritten")
}

func TestParse_RegionContainsCommand(t *testing.T) {
	src := "<!-- scroll-start time=0 -->\n<!-- exec time=3 -->\n```\nls\n```\n<!-- /exec -->\n<!-- scroll-end time=9 -->"

	res := Parse(src)

	require.Len(t, res.Regions, 1)
	require.Len(t, res.Execute, 1)
	assert.Contains(t, res.Transformed, "<!-- exec time=3 -->")
}

func TestParse_IgnoresOtherComments(t *testing.T) {
	res := Parse("<!-- execute time=1 -->\n<!-- TODO: write docs -->\n")

	assert.Empty(t, res.Execute)
	assert.Empty(t, res.Skipped)
}

func TestParse_Golden(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("testdata", "tour.md"))
	require.NoError(t, err)

	res := Parse(string(src))

	require.Len(t, res.Execute, 1)
	assert.Equal(t, 8, res.Execute[0].Line)
	require.Len(t, res.Insert, 1)
	assert.Equal(t, 60, res.Insert[0].Time)
	assert.Equal(t, 15, res.Insert[0].Line)
	require.Len(t, res.Regions, 1)
	assert.Equal(t, 20, res.Regions[0].End)

	g := goldie.New(t)
	g.Assert(t, "tour", []byte(res.Transformed))
}
