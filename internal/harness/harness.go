package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/readmeplay/internal/channel"
	"github.com/roach88/readmeplay/internal/markup"
	"github.com/roach88/readmeplay/internal/scheduler"
	"github.com/roach88/readmeplay/internal/store"
	"github.com/roach88/readmeplay/internal/testutil"
	"github.com/roach88/readmeplay/internal/wire"
)

// Harness holds the state of one scenario run.
//
// Every collaborator is synchronous, so a run is single-threaded and
// deterministic.
type Harness struct {
	store     *store.Store
	session   store.Session
	transport *testutil.FakeTransport
	ticker    *testutil.ManualTicker
	clock     *testutil.ManualClock
	channel   *channel.Channel
	scheduler *scheduler.Scheduler
	logger    *slog.Logger

	result *Result
	seq    int64
	frames int
	errs   []error
}

// Run executes a scenario in a fresh in-memory journal and evaluates its
// assertions.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	h := &Harness{
		store:     st,
		transport: &testutil.FakeTransport{},
		ticker:    &testutil.ManualTicker{},
		clock:     testutil.NewManualClock(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:    NewResult(),
	}

	res := markup.Parse(scenario.Document)
	for _, s := range res.Skipped {
		h.trace(TraceEvent{Type: EventError, Detail: fmt.Sprintf("line %d %s: %s", s.Line, s.Marker, s.Reason)})
	}

	h.session, err = st.WriteSession(ctx, store.Session{
		ID:       "scenario-" + scenario.Name,
		Document: scenario.Name,
		Endpoint: channel.DefaultEndpoint,
		Commands: len(res.Execute) + len(res.Insert),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}

	h.channel = channel.New(channel.Config{
		Transport: h.transport,
		Ticker:    h.ticker,
		Logger:    h.logger,
	})
	h.channel.Subscribe(channel.EventStateChanged, func(ev channel.Event) {
		h.trace(TraceEvent{Type: EventState, State: ev.State.String()})
	})
	h.channel.Subscribe(channel.EventError, func(ev channel.Event) {
		h.trace(TraceEvent{Type: EventError, Detail: ev.Err.Error()})
	})

	autoExec := scenario.AutoExecute == nil || *scenario.AutoExecute
	h.scheduler = scheduler.New(res, h.channel,
		scheduler.WithLogger(h.logger),
		scheduler.WithEnabled(scheduler.AutoExecute, autoExec),
	)
	h.scheduler.Subscribe(func(f scheduler.Fired) {
		pos := f.Position
		msg := f.Message
		h.trace(TraceEvent{Type: EventFired, Position: &pos, Message: &msg})
		tt := f.Command.Time
		h.journal(ctx, store.Delivery{
			Source:      store.SourceScheduled,
			TriggerTime: &tt,
			Position:    f.Position,
			Line:        f.Command.Line,
			Body:        f.Message,
		})
	})

	unsub := h.clock.Subscribe(h.scheduler.OnClockTick)
	defer unsub()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	if err := errors.Join(h.errs...); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	h.result.Sent = append(h.result.Sent, h.transport.Messages()...)
	h.result.State = h.channel.State().String()
	h.result.Pending = h.channel.Pending()

	actx := &AssertionContext{Store: st, Ctx: ctx, SessionID: h.session.ID}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	ev := TraceEvent{Type: EventStep, Action: step.Action, Position: step.At}
	switch step.Action {
	case StepFail:
		ev.Detail = step.Error
	case StepSend:
		ev.Detail = step.Code
	case StepToggle:
		ev.Detail = fmt.Sprintf("%s %v", step.Feature, *step.On)
	}
	h.trace(ev)

	switch step.Action {
	case StepTick:
		h.clock.Set(*step.At)
	case StepAccept, StepFail, StepDrop:
		sock := h.transport.Last()
		if sock == nil {
			return fmt.Errorf("%s: no connection attempt", step.Action)
		}
		switch step.Action {
		case StepAccept:
			sock.Accept()
		case StepFail:
			sock.Fail(errors.New(step.Error))
		case StepDrop:
			sock.Drop()
		}
	case StepSend:
		msg := wire.Execute(step.Code)
		h.channel.Send(msg)
		pos, _ := h.scheduler.Position()
		h.journal(ctx, store.Delivery{
			Source:   store.SourceManual,
			Position: pos,
			Body:     msg,
		})
	case StepKeepalive:
		h.ticker.Tick()
	case StepToggle:
		f := scheduler.AutoExecute
		if step.Feature == "scroll" {
			f = scheduler.AutoScroll
		}
		h.scheduler.SetEnabled(f, *step.On)
	case StepReconnect:
		h.channel.EnsureConnected()
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	h.traceFrames()
	return nil
}

// traceFrames records frames written since the last call.
func (h *Harness) traceFrames() {
	sent := h.transport.Sent()
	for _, data := range sent[h.frames:] {
		msg, err := wire.Unmarshal(data)
		if err != nil {
			h.trace(TraceEvent{Type: EventError, Detail: fmt.Sprintf("undecodable frame: %v", err)})
			continue
		}
		h.trace(TraceEvent{Type: EventFrame, Message: &msg})
	}
	h.frames = len(sent)
}

func (h *Harness) trace(ev TraceEvent) {
	h.seq++
	ev.Seq = h.seq
	h.result.Trace = append(h.result.Trace, ev)
}

func (h *Harness) journal(ctx context.Context, d store.Delivery) {
	d.SessionID = h.session.ID
	if _, err := h.store.WriteDelivery(ctx, d); err != nil {
		h.errs = append(h.errs, err)
	}
}
