package scheduler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/readmeplay/internal/markup"
	"github.com/roach88/readmeplay/internal/wire"
)

type recordingSender struct {
	sent []wire.Message
}

func (r *recordingSender) Send(msg wire.Message) {
	r.sent = append(r.sent, msg)
}

type fakeViewport struct {
	height  float64
	offsets []float64
}

func (v *fakeViewport) Height() float64         { return v.height }
func (v *fakeViewport) ScrollTo(offset float64) { v.offsets = append(v.offsets, offset) }

type mapLocator map[markup.RangeRef]Bounds

func (m mapLocator) Locate(ref markup.RangeRef) (Bounds, bool) {
	b, ok := m[ref]
	return b, ok
}

func exec(time, offset int, code string) markup.TriggeredCommand {
	return markup.TriggeredCommand{Time: time, Offset: offset, Payload: markup.Execute{Code: code}}
}

func insert(time, offset int, code, file, anchor string) markup.TriggeredCommand {
	return markup.TriggeredCommand{
		Time:    time,
		Offset:  offset,
		Payload: markup.Insert{Code: code, FilePath: file, SearchAnchor: anchor},
	}
}

func TestOnClockTick_FiresOnceAcrossRepeatedTicks(t *testing.T) {
	s := &recordingSender{}
	sch := New(markup.Result{Execute: []markup.TriggeredCommand{exec(5, 0, "echo hi")}}, s)

	for _, pos := range []float64{0, 3, 5, 5, 10} {
		sch.OnClockTick(pos)
	}

	assert.Equal(t, []wire.Message{wire.Execute("echo hi")}, s.sent)
	assert.Equal(t, 0, sch.Remaining())
}

func TestOnClockTick_BackwardSeekDoesNotRefire(t *testing.T) {
	s := &recordingSender{}
	sch := New(markup.Result{Execute: []markup.TriggeredCommand{exec(5, 0, "x")}}, s)

	sch.OnClockTick(6)
	sch.OnClockTick(2)
	sch.OnClockTick(6)

	assert.Len(t, s.sent, 1)
}

func TestOnClockTick_JumpFiresEverythingDueInDocumentOrder(t *testing.T) {
	s := &recordingSender{}
	res := markup.Result{
		Execute: []markup.TriggeredCommand{exec(30, 10, "late"), exec(1, 50, "early")},
		Insert:  []markup.TriggeredCommand{insert(20, 30, "code", "a.go", "func a")},
	}
	sch := New(res, s)

	sch.OnClockTick(100)

	assert.Equal(t, []wire.Message{
		wire.Execute("late"),
		wire.Insert("code", "a.go", "func a"),
		wire.Execute("early"),
	}, s.sent, "no catch-up skip; order follows the document, not trigger time")
}

func TestOnClockTick_IgnoresNaN(t *testing.T) {
	s := &recordingSender{}
	sch := New(markup.Result{Execute: []markup.TriggeredCommand{exec(0, 0, "x")}}, s)

	sch.OnClockTick(math.NaN())

	assert.Empty(t, s.sent)
	_, seen := sch.Position()
	assert.False(t, seen)
}

func TestOnClockTick_ZeroTimeFiresAtStart(t *testing.T) {
	s := &recordingSender{}
	sch := New(markup.Result{Execute: []markup.TriggeredCommand{exec(0, 0, "first")}}, s)

	sch.OnClockTick(0)

	assert.Equal(t, []wire.Message{wire.Execute("first")}, s.sent)
}

func TestSetEnabled_AutoExecuteOffRecordsPosition(t *testing.T) {
	s := &recordingSender{}
	sch := New(markup.Result{Execute: []markup.TriggeredCommand{exec(5, 0, "x")}}, s,
		WithEnabled(AutoExecute, false))

	sch.OnClockTick(8)
	assert.Empty(t, s.sent)
	pos, seen := sch.Position()
	assert.True(t, seen)
	assert.Equal(t, 8.0, pos)

	sch.SetEnabled(AutoExecute, true)
	assert.Equal(t, []wire.Message{wire.Execute("x")}, s.sent, "re-enable fires overdue commands")

	sch.SetEnabled(AutoExecute, true)
	assert.Len(t, s.sent, 1, "enabling twice does not re-evaluate")
}

func TestSetEnabled_BeforeAnyTickDoesNothing(t *testing.T) {
	s := &recordingSender{}
	sch := New(markup.Result{Execute: []markup.TriggeredCommand{exec(0, 0, "x")}}, s,
		WithEnabled(AutoExecute, false))

	sch.SetEnabled(AutoExecute, true)

	assert.Empty(t, s.sent)
	assert.True(t, sch.Enabled(AutoExecute))
}

func TestSubscribe_NotifiesFiredCommands(t *testing.T) {
	s := &recordingSender{}
	res := markup.Result{
		Execute: []markup.TriggeredCommand{exec(1, 0, "a")},
		Insert:  []markup.TriggeredCommand{insert(2, 10, "b", "f.go", "anchor")},
	}
	sch := New(res, s)

	var fired []Fired
	unsub := sch.Subscribe(func(f Fired) { fired = append(fired, f) })
	sch.OnClockTick(1.5)
	unsub()
	sch.OnClockTick(3)

	require.Len(t, fired, 1)
	assert.Equal(t, wire.Execute("a"), fired[0].Message)
	assert.Equal(t, 1.5, fired[0].Position)
	assert.Len(t, s.sent, 2)
}

func TestSubscribe_CommandIsFiredBeforeSend(t *testing.T) {
	res := markup.Result{Execute: []markup.TriggeredCommand{exec(1, 0, "a")}}
	var sch *Scheduler
	reentrant := senderFunc(func(wire.Message) {
		// A synchronous sender that feeds the clock back in.
		sch.OnClockTick(2)
	})
	sch = New(res, reentrant)

	sch.OnClockTick(1)

	cmds := sch.Commands()
	require.Len(t, cmds, 1)
	assert.True(t, cmds[0].Fired)
}

type senderFunc func(wire.Message)

func (f senderFunc) Send(msg wire.Message) { f(msg) }

func TestCommands_SnapshotIsIndependent(t *testing.T) {
	sch := New(markup.Result{Execute: []markup.TriggeredCommand{exec(1, 0, "a")}}, &recordingSender{})

	snap := sch.Commands()
	snap[0].Fired = true

	assert.False(t, sch.Commands()[0].Fired)
}

func TestScroll_AppliesOffsetForActiveRegion(t *testing.T) {
	vp := &fakeViewport{height: 100}
	loc := mapLocator{"scroll-region-0": {Top: 1000, Bottom: 1400}}
	res := markup.Result{Regions: []markup.ScrollRegion{{Start: 10, End: 20, Ref: "scroll-region-0"}}}
	sch := New(res, &recordingSender{}, WithViewport(vp), WithLocator(loc))

	sch.OnClockTick(5)  // before the region
	sch.OnClockTick(15) // halfway

	require.Len(t, vp.offsets, 1)
	// Top + 0.5 * ((Bottom - viewport) - Top) = 1000 + 0.5*300
	assert.InDelta(t, 1150.0, vp.offsets[0], 1e-9)
}

func TestScroll_DisabledThenReenabled(t *testing.T) {
	vp := &fakeViewport{height: 100}
	loc := mapLocator{"scroll-region-0": {Top: 0, Bottom: 500}}
	res := markup.Result{Regions: []markup.ScrollRegion{{Start: 0, End: 10, Ref: "scroll-region-0"}}}
	sch := New(res, &recordingSender{}, WithViewport(vp), WithLocator(loc), WithEnabled(AutoScroll, false))

	sch.OnClockTick(10)
	assert.Empty(t, vp.offsets)

	sch.SetEnabled(AutoScroll, true)
	require.Len(t, vp.offsets, 1)
	assert.InDelta(t, 400.0, vp.offsets[0], 1e-9)
}

func TestScroll_UnresolvedRegionIsIgnored(t *testing.T) {
	vp := &fakeViewport{height: 100}
	res := markup.Result{Regions: []markup.ScrollRegion{{Start: 0, End: 10, Ref: "scroll-region-0"}}}
	sch := New(res, &recordingSender{}, WithViewport(vp), WithLocator(mapLocator{}))

	sch.OnClockTick(5)

	assert.Empty(t, vp.offsets)
}

func TestScheduler_FromParsedDocument(t *testing.T) {
	src := "# Tour\n\n" +
		"<!-- exec time=0:05 -->\n```sh\necho hi\n```\n<!-- /exec -->\n\n" +
		"<!-- insert time=7 filePath=\"main.go\" searchAnchor=\"func main() {\" -->\n" +
		"```go\nfmt.Println(1)\n```\n<!-- /insert -->\n"
	res := markup.Parse(src)
	require.Empty(t, res.Skipped)

	s := &recordingSender{}
	sch := New(res, s)
	sch.OnClockTick(6)
	sch.OnClockTick(7)

	assert.Equal(t, []wire.Message{
		wire.Execute("echo hi"),
		wire.Insert("fmt.Println(1)", "main.go", "func main() {"),
	}, s.sent)
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, Describe(Entry{TriggeredCommand: exec(5, 0, "x")}), "pending exec")
	assert.Contains(t, Describe(Entry{TriggeredCommand: insert(5, 0, "x", "a.go", "s"), Fired: true}), "-> a.go")
}

func TestFeature_String(t *testing.T) {
	assert.Equal(t, "exec", AutoExecute.String())
	assert.Equal(t, "scroll", AutoScroll.String())
	assert.Equal(t, "unknown", Feature(9).String())
}
