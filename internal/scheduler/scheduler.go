// Package scheduler fires parsed commands as a playback clock reaches their
// trigger times and keeps the active scroll region in view.
//
// A Scheduler is not safe for concurrent use. The session posts every clock
// tick onto its loop, so all calls arrive on one goroutine.
package scheduler

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/readmeplay/internal/events"
	"github.com/roach88/readmeplay/internal/markup"
	"github.com/roach88/readmeplay/internal/wire"
)

// Sender delivers a wire message. *channel.Channel satisfies it.
type Sender interface {
	Send(msg wire.Message)
}

// Feature names a toggle the user can flip during playback.
type Feature int

const (
	AutoExecute Feature = iota
	AutoScroll
)

// String returns the feature's console name.
func (f Feature) String() string {
	switch f {
	case AutoExecute:
		return "exec"
	case AutoScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// Entry is a command together with its fired bit.
type Entry struct {
	markup.TriggeredCommand
	Fired bool
}

// Fired is published once for every command the scheduler hands to its
// Sender.
type Fired struct {
	Command  markup.TriggeredCommand
	Message  wire.Message
	Position float64
}

// Scheduler owns the fired state for one loaded document.
type Scheduler struct {
	entries  []Entry
	regions  []markup.ScrollRegion
	sender   Sender
	viewport Viewport
	locator  Locator
	logger   *slog.Logger

	autoExecute bool
	autoScroll  bool

	lastPos float64
	seen    bool

	fired events.Hub[Fired]
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithViewport sets the view that scroll offsets are applied to.
func WithViewport(v Viewport) Option {
	return func(s *Scheduler) { s.viewport = v }
}

// WithLocator sets the resolver for region geometry.
func WithLocator(l Locator) Option {
	return func(s *Scheduler) { s.locator = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithEnabled sets a feature's initial state. Both features start enabled.
func WithEnabled(f Feature, on bool) Option {
	return func(s *Scheduler) { s.setFlag(f, on) }
}

// New creates a scheduler over the commands and regions in res.
func New(res markup.Result, sender Sender, opts ...Option) *Scheduler {
	cmds := res.Commands()
	entries := make([]Entry, len(cmds))
	for i, c := range cmds {
		entries[i] = Entry{TriggeredCommand: c}
	}

	s := &Scheduler{
		entries:     entries,
		regions:     append([]markup.ScrollRegion(nil), res.Regions...),
		sender:      sender,
		logger:      slog.Default(),
		autoExecute: true,
		autoScroll:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnClockTick handles a playback position update. Positions may move
// backward; commands already fired stay fired.
func (s *Scheduler) OnClockTick(pos float64) {
	if math.IsNaN(pos) {
		return
	}
	s.lastPos = pos
	s.seen = true

	if s.autoExecute {
		s.fireDue(pos)
	}
	if s.autoScroll {
		s.scroll(pos)
	}
}

// SetEnabled turns a feature on or off. Turning a feature on evaluates it
// once against the last observed position.
func (s *Scheduler) SetEnabled(f Feature, on bool) {
	was := s.Enabled(f)
	s.setFlag(f, on)
	s.logger.Debug("feature toggled", "feature", f.String(), "enabled", on)

	if !on || was || !s.seen {
		return
	}
	switch f {
	case AutoExecute:
		s.fireDue(s.lastPos)
	case AutoScroll:
		s.scroll(s.lastPos)
	}
}

// Enabled reports a feature's state.
func (s *Scheduler) Enabled(f Feature) bool {
	switch f {
	case AutoExecute:
		return s.autoExecute
	case AutoScroll:
		return s.autoScroll
	default:
		return false
	}
}

// Position returns the last observed clock position.
func (s *Scheduler) Position() (float64, bool) {
	return s.lastPos, s.seen
}

// Commands returns a snapshot of every command in document order.
func (s *Scheduler) Commands() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Remaining returns the number of commands not yet fired.
func (s *Scheduler) Remaining() int {
	n := 0
	for _, e := range s.entries {
		if !e.Fired {
			n++
		}
	}
	return n
}

// Subscribe registers handler for fired commands.
func (s *Scheduler) Subscribe(handler func(Fired)) (unsubscribe func()) {
	return s.fired.Subscribe(handler)
}

func (s *Scheduler) setFlag(f Feature, on bool) {
	switch f {
	case AutoExecute:
		s.autoExecute = on
	case AutoScroll:
		s.autoScroll = on
	}
}

func (s *Scheduler) fireDue(pos float64) {
	for i := range s.entries {
		e := &s.entries[i]
		if e.Fired || float64(e.Time) > pos {
			continue
		}
		// Mark first: a Sender that re-enters the scheduler must not see
		// this command as due again.
		e.Fired = true

		msg, err := wire.FromPayload(e.Payload)
		if err != nil {
			s.logger.Error("dropping command", "line", e.Line, "error", err)
			continue
		}

		s.logger.Info("command fired",
			"kind", msg.Type,
			"time", e.Time,
			"position", pos,
			"line", e.Line,
		)
		s.sender.Send(msg)
		s.fired.Publish(Fired{Command: e.TriggeredCommand, Message: msg, Position: pos})
	}
}

func (s *Scheduler) scroll(pos float64) {
	if s.viewport == nil || s.locator == nil {
		return
	}
	region, ok := ActiveRegion(s.regions, pos)
	if !ok {
		return
	}
	bounds, ok := s.locator.Locate(region.Ref)
	if !ok {
		s.logger.Debug("scroll region not rendered", "ref", region.Ref)
		return
	}
	s.viewport.ScrollTo(ScrollOffset(pos, region, bounds, s.viewport.Height()))
}

// Describe renders an entry for console listings.
func Describe(e Entry) string {
	state := "pending"
	if e.Fired {
		state = "fired"
	}
	switch p := e.Payload.(type) {
	case markup.Execute:
		return fmt.Sprintf("%6ds  %-7s exec    line %d", e.Time, state, e.Line)
	case markup.Insert:
		return fmt.Sprintf("%6ds  %-7s insert  line %d -> %s", e.Time, state, e.Line, p.FilePath)
	default:
		return fmt.Sprintf("%6ds  %-7s unknown line %d", e.Time, state, e.Line)
	}
}
