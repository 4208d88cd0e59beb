package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/readmeplay/internal/store"
	"github.com/roach88/readmeplay/internal/wire"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Sent     []wire.Message
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nSent:\n")
	for i, m := range e.Sent {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, describe(m))
	}
	return buf.String()
}

func describe(m wire.Message) string {
	switch m.Type {
	case wire.TypeInsert:
		return fmt.Sprintf("%s %s %q", m.Type, m.File, m.Code)
	default:
		return fmt.Sprintf("%s %q", m.Type, m.Content)
	}
}

// AssertionContext gives assertions access to the run's journal.
type AssertionContext struct {
	Store     *store.Store
	Ctx       context.Context
	SessionID string
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertSentContains:
		return assertSentContains(result.Sent, a)
	case AssertSentOrder:
		return assertSentOrder(result.Sent, a)
	case AssertSentCount:
		return assertSentCount(result.Sent, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	case AssertJournalCount:
		return assertJournalCount(result.Sent, a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertSentContains(sent []wire.Message, a Assertion) error {
	for _, m := range sent {
		if matchMessage(m, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertSentContains,
		Expected: fmt.Sprintf("message type=%q content=%q file=%q", a.MessageType, a.Content, a.File),
		Actual:   "not sent",
		Sent:     sent,
	}
}

// matchMessage has subset semantics: empty assertion fields match anything.
func matchMessage(m wire.Message, a Assertion) bool {
	if a.MessageType != "" && m.Type != a.MessageType {
		return false
	}
	if a.Content != "" && m.Content != a.Content && m.Code != a.Content {
		return false
	}
	if a.File != "" && m.File != a.File {
		return false
	}
	return true
}

// assertSentOrder checks that the execute contents were sent in exactly this
// order. Other message types are ignored.
func assertSentOrder(sent []wire.Message, a Assertion) error {
	var got []string
	for _, m := range sent {
		if m.Type == wire.TypeExecute {
			got = append(got, m.Content)
		}
	}
	if !equalStrings(got, a.Contents) {
		return &AssertionError{
			Type:     AssertSentOrder,
			Expected: fmt.Sprintf("%q", a.Contents),
			Actual:   fmt.Sprintf("%q", got),
			Sent:     sent,
		}
	}
	return nil
}

func assertSentCount(sent []wire.Message, a Assertion) error {
	if len(sent) != *a.Count {
		return &AssertionError{
			Type:     AssertSentCount,
			Expected: fmt.Sprintf("%d messages", *a.Count),
			Actual:   fmt.Sprintf("%d messages", len(sent)),
			Sent:     sent,
		}
	}
	return nil
}

func assertFinalState(result *Result, a Assertion) error {
	if a.State != "" && result.State != a.State {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "state " + a.State,
			Actual:   "state " + result.State,
			Sent:     result.Sent,
		}
	}
	if a.Pending != nil && result.Pending != *a.Pending {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d pending", *a.Pending),
			Actual:   fmt.Sprintf("%d pending", result.Pending),
			Sent:     result.Sent,
		}
	}
	return nil
}

func assertJournalCount(sent []wire.Message, a Assertion, actx *AssertionContext) error {
	if actx == nil || actx.Store == nil {
		return fmt.Errorf("journal_count requires a journal")
	}
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	deliveries, err := actx.Store.ListDeliveries(ctx, actx.SessionID)
	if err != nil {
		return fmt.Errorf("list deliveries: %w", err)
	}
	n := 0
	for _, d := range deliveries {
		if a.Source == "" || d.Source == a.Source {
			n++
		}
	}
	if n != *a.Count {
		what := "deliveries"
		if a.Source != "" {
			what = string(a.Source) + " deliveries"
		}
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d %s", n, what),
			Sent:     sent,
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
