package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/readmeplay/internal/channel"
	"github.com/roach88/readmeplay/internal/loop"
	"github.com/roach88/readmeplay/internal/markup"
	"github.com/roach88/readmeplay/internal/playback"
	"github.com/roach88/readmeplay/internal/render"
	"github.com/roach88/readmeplay/internal/scheduler"
	"github.com/roach88/readmeplay/internal/source"
	"github.com/roach88/readmeplay/internal/store"
	"github.com/roach88/readmeplay/internal/wire"
)

var (
	// ErrNotStarted is returned by actions issued before Start succeeds.
	ErrNotStarted = errors.New("session not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNoSuchBlock is returned by ExecuteBlock for an out-of-range index.
	ErrNoSuchBlock = errors.New("no such code block")
)

// Clock is the playback clock a session follows and controls.
// *playback.Clock satisfies it.
type Clock interface {
	playback.Source
	Play()
	Pause()
	Seek(t float64)
	SetRate(rate float64) error
	Playing() bool
	Rate() float64
	Run(ctx context.Context, interval time.Duration) error
}

// Config holds the settings for one session.
type Config struct {
	// Owner and Repo name the document's repository. File fetchers ignore
	// them.
	Owner string
	Repo  string
	// Refs are tried in order; empty uses source.DefaultRefs.
	Refs []string
	// Name labels the document in logs and the journal.
	Name string

	Endpoint       string
	Keepalive      time.Duration
	TickInterval   time.Duration
	ReadyTimeout   time.Duration
	ReadyPoll      time.Duration
	AutoExecute    bool
	AutoScroll     bool
	ViewportHeight int
}

// Deps are the collaborators a Coordinator drives.
type Deps struct {
	Fetcher source.TextFetcher
	// Probe gates startup; nil means the document is ready immediately.
	Probe source.Probe
	// Transport opens executor sockets; nil uses a websocket transport
	// dispatching on the session loop.
	Transport channel.Transport
	// Clock defaults to a fresh playback.Clock.
	Clock    Clock
	Renderer render.Renderer
	// Output receives the pager window; nil discards it.
	Output io.Writer
	// Journal is optional.
	Journal Journal
	IDs     IDGenerator
	Logger  *slog.Logger
}

// Session identifies one playback.
type Session struct {
	ID     string
	Logger *slog.Logger
}

// Status is a point-in-time view of a running session.
type Status struct {
	SessionID   string        `json:"session_id"`
	Document    string        `json:"document"`
	Ref         string        `json:"ref"`
	Position    float64       `json:"position"`
	Playing     bool          `json:"playing"`
	Rate        float64       `json:"rate"`
	Channel     string        `json:"channel"`
	Pending     int           `json:"pending"`
	Commands    int           `json:"commands"`
	Remaining   int           `json:"remaining"`
	Regions     int           `json:"regions"`
	Skipped     int           `json:"skipped"`
	AutoExecute bool          `json:"auto_execute"`
	AutoScroll  bool          `json:"auto_scroll"`
	Uptime      time.Duration `json:"uptime"`
}

// Coordinator runs one session.
//
// Thread-safety model:
//   - Start(), Stop(): call from one goroutine
//   - every other method: safe from any goroutine once Start has returned
type Coordinator struct {
	cfg     Config
	deps    Deps
	session Session
	loop    *loop.Loop
	channel *channel.Channel

	// Set by Start before the loop sees any task, read-only afterwards.
	result    markup.Result
	blocks    []markup.CodeBlock
	doc       *render.Document
	pager     *render.Pager
	scheduler *scheduler.Scheduler
	ref       string
	started   time.Time

	recorder   *recorder
	unsubClock func()
	cancel     context.CancelFunc
	clockDone  chan struct{}
	loopDone   chan error

	mu      sync.Mutex
	running bool
	stopped bool
}

// New creates a coordinator. Nothing touches the network until Start.
func New(cfg Config, deps Deps) *Coordinator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.IDs == nil {
		deps.IDs = UUIDv7Generator{}
	}
	if deps.Clock == nil {
		deps.Clock = playback.NewClock()
	}
	if deps.Renderer == nil {
		deps.Renderer = render.Plain{}
	}
	if deps.Output == nil {
		deps.Output = io.Discard
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Owner + "/" + cfg.Repo
	}

	id := deps.IDs.Generate()
	logger := deps.Logger.With("session", id)
	l := loop.New(logger)

	if deps.Transport == nil {
		deps.Transport = channel.NewWebsocketTransport(l, channel.WithTransportLogger(logger))
	}

	c := &Coordinator{
		cfg:     cfg,
		deps:    deps,
		session: Session{ID: id, Logger: logger},
		loop:    l,
	}
	c.channel = channel.New(channel.Config{
		Endpoint:          cfg.Endpoint,
		Transport:         deps.Transport,
		Ticker:            l,
		KeepaliveInterval: cfg.Keepalive,
		Logger:            logger,
	})
	return c
}

// Session returns the session identity.
func (c *Coordinator) Session() Session {
	return c.session
}

// Clock returns the clock the session follows.
func (c *Coordinator) Clock() Clock {
	return c.deps.Clock
}

// Start runs the startup sequence and begins following the clock.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running || c.stopped {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()

	logger := c.session.Logger

	if c.deps.Probe != nil {
		logger.Debug("waiting for document", "timeout", c.cfg.ReadyTimeout)
		if err := source.WaitReady(ctx, c.deps.Probe, c.cfg.ReadyPoll, c.cfg.ReadyTimeout); err != nil {
			return fmt.Errorf("wait for document: %w", err)
		}
	}

	text, ref, err := source.FetchWithFallback(ctx, c.deps.Fetcher, c.cfg.Owner, c.cfg.Repo, c.cfg.Refs...)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}
	c.ref = ref

	c.result = markup.Parse(text)
	c.blocks = markup.CodeBlocks(text)
	for _, s := range c.result.Skipped {
		logger.Warn("annotation skipped", "line", s.Line, "marker", s.Marker, "reason", s.Reason)
	}
	logger.Info("document loaded",
		"document", c.cfg.Name,
		"ref", ref,
		"execute", len(c.result.Execute),
		"insert", len(c.result.Insert),
		"regions", len(c.result.Regions),
		"skipped", len(c.result.Skipped),
	)

	c.doc = render.NewDocument(c.deps.Renderer.Render(c.result.Transformed))
	c.pager = render.NewPager(c.deps.Output, c.doc, c.cfg.ViewportHeight)

	c.scheduler = scheduler.New(c.result, c.channel,
		scheduler.WithViewport(c.pager),
		scheduler.WithLocator(c.doc),
		scheduler.WithLogger(logger),
		scheduler.WithEnabled(scheduler.AutoExecute, c.cfg.AutoExecute),
		scheduler.WithEnabled(scheduler.AutoScroll, c.cfg.AutoScroll),
	)

	c.channel.Subscribe(channel.EventStateChanged, func(ev channel.Event) {
		logger.Info("executor channel", "state", ev.State.String(), "pending", c.channel.Pending())
	})
	c.channel.Subscribe(channel.EventMessage, func(ev channel.Event) {
		logger.Debug("executor reply", "data", string(ev.Data))
	})

	if c.deps.Journal != nil {
		sess, err := c.deps.Journal.WriteSession(ctx, store.Session{
			ID:       c.session.ID,
			Document: c.cfg.Name,
			Ref:      ref,
			Endpoint: c.channel.Endpoint(),
			Commands: len(c.result.Execute) + len(c.result.Insert),
		})
		if err != nil {
			return fmt.Errorf("journal session: %w", err)
		}
		c.recorder = newRecorder(c.deps.Journal, logger)
		c.scheduler.Subscribe(func(f scheduler.Fired) {
			tt := f.Command.Time
			c.recorder.record(store.Delivery{
				SessionID:   sess.ID,
				Source:      store.SourceScheduled,
				TriggerTime: &tt,
				Position:    f.Position,
				Line:        f.Command.Line,
				Body:        f.Message,
			})
		})
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loopDone = make(chan error, 1)
	go func() { c.loopDone <- c.loop.Run(runCtx) }()

	if c.doc.Len() > 0 {
		c.loop.Post(c.pager.Show)
	}

	c.unsubClock = c.deps.Clock.Subscribe(func(pos float64) {
		c.loop.Post(func() { c.scheduler.OnClockTick(pos) })
	})
	c.clockDone = make(chan struct{})
	go func() {
		defer close(c.clockDone)
		_ = c.deps.Clock.Run(runCtx, c.cfg.TickInterval)
	}()

	c.started = time.Now()
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	logger.Info("session started", "endpoint", c.channel.Endpoint())
	return nil
}

// Stop unsubscribes from the clock, closes the channel and stops the loop.
// Queued deliveries are written to the journal before Stop returns.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running || c.stopped {
		c.stopped = true
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.running = false
	c.mu.Unlock()

	c.unsubClock()
	c.loop.Post(c.channel.Close)
	c.loop.Stop()
	<-c.loopDone
	c.cancel()
	<-c.clockDone

	if c.recorder != nil {
		c.recorder.close()
	}
	c.session.Logger.Info("session stopped", "pending", c.channel.Pending())
}

// Done is closed when the session loop exits.
func (c *Coordinator) Done() <-chan struct{} {
	return c.loop.Done()
}

// Do runs fn on the session loop and waits for it.
func (c *Coordinator) Do(ctx context.Context, fn func()) error {
	if !c.isRunning() {
		return ErrNotStarted
	}
	return c.loop.Call(ctx, fn)
}

// Execute sends code to the executor as a one-off manual command.
func (c *Coordinator) Execute(ctx context.Context, code string) error {
	return c.sendManual(ctx, wire.Execute(code), 0)
}

// ExecuteBlock sends the i-th fenced code block of the document.
func (c *Coordinator) ExecuteBlock(ctx context.Context, i int) error {
	if !c.isRunning() {
		return ErrNotStarted
	}
	if i < 0 || i >= len(c.blocks) {
		return fmt.Errorf("%w: %d (document has %d)", ErrNoSuchBlock, i, len(c.blocks))
	}
	b := c.blocks[i]
	return c.sendManual(ctx, wire.Execute(b.Code), b.Line)
}

func (c *Coordinator) sendManual(ctx context.Context, msg wire.Message, line int) error {
	return c.Do(ctx, func() {
		c.session.Logger.Info("manual send", "kind", msg.Type, "line", line)
		c.channel.Send(msg)
		if c.recorder != nil {
			pos, _ := c.scheduler.Position()
			c.recorder.record(store.Delivery{
				SessionID: c.session.ID,
				Source:    store.SourceManual,
				Position:  pos,
				Line:      line,
				Body:      msg,
			})
		}
	})
}

// SetEnabled toggles auto-execute or auto-scroll.
func (c *Coordinator) SetEnabled(ctx context.Context, f scheduler.Feature, on bool) error {
	return c.Do(ctx, func() { c.scheduler.SetEnabled(f, on) })
}

// Blocks returns the document's fenced code blocks.
func (c *Coordinator) Blocks() []markup.CodeBlock {
	return c.blocks
}

// Commands returns a snapshot of the scheduled commands.
func (c *Coordinator) Commands(ctx context.Context) ([]scheduler.Entry, error) {
	var out []scheduler.Entry
	err := c.Do(ctx, func() { out = c.scheduler.Commands() })
	return out, err
}

// Status returns the current session state.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	st := Status{
		SessionID: c.session.ID,
		Document:  c.cfg.Name,
		Ref:       c.ref,
		Position:  c.deps.Clock.Position(),
		Playing:   c.deps.Clock.Playing(),
		Rate:      c.deps.Clock.Rate(),
		Regions:   len(c.result.Regions),
		Skipped:   len(c.result.Skipped),
		Uptime:    time.Since(c.started).Round(time.Second),
	}
	err := c.Do(ctx, func() {
		st.Channel = c.channel.State().String()
		st.Pending = c.channel.Pending()
		st.Commands = len(c.scheduler.Commands())
		st.Remaining = c.scheduler.Remaining()
		st.AutoExecute = c.scheduler.Enabled(scheduler.AutoExecute)
		st.AutoScroll = c.scheduler.Enabled(scheduler.AutoScroll)
	})
	return st, err
}

func (c *Coordinator) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
