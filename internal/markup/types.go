package markup

// Kind names a payload variant.
type Kind string

const (
	KindExecute Kind = "execute"
	KindInsert  Kind = "insert"
)

// Payload is the closed set of command bodies.
//
// The unexported marker method keeps the set closed to this package; callers
// dispatch with an exhaustive type switch over Execute and Insert.
type Payload interface {
	Kind() Kind
	payload()
}

// Execute asks the executor to run Code as-is.
type Execute struct {
	Code string `json:"code"`
}

// Kind implements Payload.
func (Execute) Kind() Kind { return KindExecute }

func (Execute) payload() {}

// Insert asks the executor to insert Code into FilePath at the location
// found by searching for SearchAnchor.
type Insert struct {
	Code         string `json:"code"`
	FilePath     string `json:"file_path"`
	SearchAnchor string `json:"search_anchor"`
}

// Kind implements Payload.
func (Insert) Kind() Kind { return KindInsert }

func (Insert) payload() {}

// TriggeredCommand is a payload bound to a trigger time.
//
// Offset is the byte offset of the opening marker in the (line-ending
// normalized) source; it defines document order across both payload kinds.
type TriggeredCommand struct {
	Time    int     `json:"time"`
	Payload Payload `json:"payload"`
	Offset  int     `json:"offset"`
	Line    int     `json:"line"`
}

// RangeRef identifies the addressable block wrapped around a scroll
// region's content in Result.Transformed.
type RangeRef string

// ScrollRegion is a span of content that should be in view while the clock
// is within [Start, End].
type ScrollRegion struct {
	Start int      `json:"start"`
	End   int      `json:"end"`
	Ref   RangeRef `json:"ref"`
	Line  int      `json:"line"`
}

// Skip records an annotation that produced no output.
type Skip struct {
	Line   int    `json:"line"`
	Marker string `json:"marker"`
	Reason string `json:"reason"`
}

// Result is the outcome of Parse.
type Result struct {
	Execute     []TriggeredCommand `json:"execute"`
	Insert      []TriggeredCommand `json:"insert"`
	Regions     []ScrollRegion     `json:"regions"`
	Transformed string             `json:"-"`
	Skipped     []Skip             `json:"skipped,omitempty"`
}

// Commands returns execute and insert commands merged in document order.
func (r Result) Commands() []TriggeredCommand {
	out := make([]TriggeredCommand, 0, len(r.Execute)+len(r.Insert))
	i, j := 0, 0
	for i < len(r.Execute) && j < len(r.Insert) {
		if r.Execute[i].Offset <= r.Insert[j].Offset {
			out = append(out, r.Execute[i])
			i++
		} else {
			out = append(out, r.Insert[j])
			j++
		}
	}
	out = append(out, r.Execute[i:]...)
	out = append(out, r.Insert[j:]...)
	return out
}
