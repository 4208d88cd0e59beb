package channel

import (
	"log/slog"
	"time"

	"github.com/roach88/readmeplay/internal/events"
	"github.com/roach88/readmeplay/internal/queue"
	"github.com/roach88/readmeplay/internal/wire"
)

// DefaultEndpoint is the executor's default local address.
const DefaultEndpoint = "ws://localhost:9182"

// DefaultKeepaliveInterval is how often an open channel sends a ping.
const DefaultKeepaliveInterval = 10 * time.Second

// State is the connection state of a Channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// Listener receives socket lifecycle callbacks. Transports must deliver
// callbacks on the dispatch goroutine and never before Open returns.
type Listener struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func()
}

// Socket is one connection attempt.
type Socket interface {
	// Send queues data for transmission without blocking.
	Send(data []byte) error
	Close() error
}

// Transport opens sockets. Open returns immediately; the outcome arrives
// through the listener.
type Transport interface {
	Open(url string, l Listener) Socket
}

// Ticker runs fn periodically on the dispatch goroutine.
type Ticker interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// EventKind selects which channel events a subscriber receives.
type EventKind int

const (
	EventStateChanged EventKind = iota + 1
	EventError
	EventMessage
)

// Event is published to subscribers.
type Event struct {
	Kind  EventKind
	State State  // EventStateChanged
	Err   error  // EventError
	Data  []byte // EventMessage
}

// Config configures a Channel.
type Config struct {
	Endpoint          string
	Transport         Transport
	Ticker            Ticker        // nil disables keepalive
	KeepaliveInterval time.Duration // default DefaultKeepaliveInterval
	Logger            *slog.Logger
}

// Channel is the resilient delivery channel.
type Channel struct {
	endpoint  string
	transport Transport
	ticker    Ticker
	interval  time.Duration
	logger    *slog.Logger

	state         State
	sock          Socket
	gen           uint64 // identifies the current socket; stale callbacks are ignored
	pending       *queue.Queue[[]byte]
	stopKeepalive func()

	hubs map[EventKind]*events.Hub[Event]
}

// New creates a disconnected channel. No socket is opened until the first
// Send or EnsureConnected.
func New(cfg Config) *Channel {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Channel{
		endpoint:  cfg.Endpoint,
		transport: cfg.Transport,
		ticker:    cfg.Ticker,
		interval:  cfg.KeepaliveInterval,
		logger:    cfg.Logger.With("component", "channel"),
		pending:   queue.New[[]byte](),
		hubs: map[EventKind]*events.Hub[Event]{
			EventStateChanged: {},
			EventError:        {},
			EventMessage:      {},
		},
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	return c.state
}

// Pending returns the number of queued, unsent messages.
func (c *Channel) Pending() int {
	return c.pending.Len()
}

// Endpoint returns the configured executor address.
func (c *Channel) Endpoint() string {
	return c.endpoint
}

// Subscribe registers handler for events of the given kind.
func (c *Channel) Subscribe(kind EventKind, handler func(Event)) (unsubscribe func()) {
	hub, ok := c.hubs[kind]
	if !ok {
		return func() {}
	}
	return hub.Subscribe(handler)
}

// EnsureConnected returns the current socket if it is open or connecting,
// otherwise opens a new one.
func (c *Channel) EnsureConnected() Socket {
	if c.state == Open || c.state == Connecting {
		return c.sock
	}

	c.gen++
	gen := c.gen
	c.setState(Connecting)
	c.logger.Info("connecting", "endpoint", c.endpoint, "attempt", gen)

	c.sock = c.transport.Open(c.endpoint, Listener{
		OnOpen:    func() { c.handleOpen(gen) },
		OnMessage: func(data []byte) { c.handleMessage(gen, data) },
		OnError:   func(err error) { c.handleError(gen, err) },
		OnClose:   func() { c.handleClose(gen) },
	})
	return c.sock
}

// Send serializes msg and transmits it if the channel is open, otherwise
// queues it and makes sure a connection attempt is under way.
//
// Messages always pass through the queue so a message can never overtake
// one queued before it.
func (c *Channel) Send(msg wire.Message) {
	data, err := msg.Marshal()
	if err != nil {
		c.logger.Error("dropping unserializable message", "type", msg.Type, "error", err)
		return
	}
	c.pending.Enqueue(data)

	if c.state == Open {
		c.flush()
		return
	}
	c.logger.Debug("queued message", "type", msg.Type, "pending", c.pending.Len(), "state", c.state)
	c.EnsureConnected()
}

// Close shuts the current socket, if any. Queued messages are kept.
func (c *Channel) Close() {
	if c.sock == nil {
		return
	}
	sock := c.sock
	c.gen++ // late callbacks from sock are now stale
	c.halt()
	if err := sock.Close(); err != nil {
		c.logger.Debug("close socket", "error", err)
	}
}

// flush transmits queued messages in order. A transmit failure stops the
// flush with the failed message still at the head of the queue.
func (c *Channel) flush() {
	for {
		data, ok := c.pending.Peek()
		if !ok {
			return
		}
		if err := c.sock.Send(data); err != nil {
			c.logger.Warn("transmit failed, message kept queued", "error", err, "pending", c.pending.Len())
			return
		}
		c.pending.TryDequeue()
	}
}

func (c *Channel) handleOpen(gen uint64) {
	if gen != c.gen || c.state != Connecting {
		return
	}
	c.setState(Open)
	c.logger.Info("connected", "endpoint", c.endpoint, "pending", c.pending.Len())

	c.flush()

	if c.ticker != nil {
		c.stopKeepalive = c.ticker.Every(c.interval, c.keepalive)
	}
}

func (c *Channel) handleMessage(gen uint64, data []byte) {
	if gen != c.gen {
		return
	}
	c.logger.Debug("executor message", "bytes", len(data))
	c.hubs[EventMessage].Publish(Event{Kind: EventMessage, Data: data})
}

// handleError reports err. The socket stays up; the transport follows a
// fatal error with a close event.
func (c *Channel) handleError(gen uint64, err error) {
	if gen != c.gen {
		return
	}
	c.logger.Warn("channel error", "endpoint", c.endpoint, "state", c.state, "error", err)
	c.hubs[EventError].Publish(Event{Kind: EventError, Err: err})
}

func (c *Channel) handleClose(gen uint64) {
	if gen != c.gen {
		return
	}
	c.halt()
	c.logger.Info("disconnected", "endpoint", c.endpoint, "pending", c.pending.Len())
}

// halt drops the socket, stops keepalive and moves to Disconnected.
func (c *Channel) halt() {
	if c.stopKeepalive != nil {
		c.stopKeepalive()
		c.stopKeepalive = nil
	}
	c.sock = nil
	c.setState(Disconnected)
}

func (c *Channel) keepalive() {
	if c.state != Open {
		return
	}
	data, err := wire.Ping().Marshal()
	if err != nil {
		return
	}
	// Errors are left to the socket's own error and close events.
	if err := c.sock.Send(data); err != nil {
		c.logger.Debug("keepalive failed", "error", err)
	}
}

func (c *Channel) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.hubs[EventStateChanged].Publish(Event{Kind: EventStateChanged, State: s})
}
