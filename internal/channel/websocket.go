package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/net/websocket"

	"github.com/roach88/readmeplay/internal/queue"
)

// ErrSocketClosed is returned by Send on a socket that has been closed.
var ErrSocketClosed = errors.New("socket closed")

// DefaultOrigin is sent as the Origin header when none is configured.
const DefaultOrigin = "http://localhost/"

// Dispatcher runs callbacks on the session's dispatch goroutine.
type Dispatcher interface {
	Post(task func()) bool
}

// WebsocketTransport opens sockets with golang.org/x/net/websocket.
//
// Each socket runs a dial goroutine that becomes the reader, plus a writer
// goroutine draining an unbounded write queue, so Send never blocks on the
// network. All Listener callbacks are posted through the Dispatcher.
type WebsocketTransport struct {
	dispatcher Dispatcher
	origin     string
	ctx        context.Context
	logger     *slog.Logger
}

// WebsocketOption configures a WebsocketTransport.
type WebsocketOption func(*WebsocketTransport)

// WithOrigin sets the Origin header.
func WithOrigin(origin string) WebsocketOption {
	return func(t *WebsocketTransport) {
		t.origin = origin
	}
}

// WithContext bounds every dial by ctx. There is no dial timeout of our
// own: a connect failure surfaces as error and close events.
func WithContext(ctx context.Context) WebsocketOption {
	return func(t *WebsocketTransport) {
		t.ctx = ctx
	}
}

// WithTransportLogger sets the transport logger.
func WithTransportLogger(logger *slog.Logger) WebsocketOption {
	return func(t *WebsocketTransport) {
		t.logger = logger
	}
}

// NewWebsocketTransport creates a transport that posts callbacks to d.
func NewWebsocketTransport(d Dispatcher, opts ...WebsocketOption) *WebsocketTransport {
	t := &WebsocketTransport{
		dispatcher: d,
		origin:     DefaultOrigin,
		ctx:        context.Background(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open implements Transport.
func (t *WebsocketTransport) Open(url string, l Listener) Socket {
	s := &wsSocket{
		listener: l,
		post:     t.dispatcher.Post,
		writes:   queue.New[[]byte](),
		logger:   t.logger.With("component", "websocket", "url", url),
	}
	go s.run(t.ctx, url, t.origin)
	return s
}

type wsSocket struct {
	listener Listener
	post     func(func()) bool
	writes   *queue.Queue[[]byte]
	logger   *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	closing   atomic.Bool
	closeOnce sync.Once
}

// Send implements Socket.
func (s *wsSocket) Send(data []byte) error {
	if !s.writes.Enqueue(data) {
		return ErrSocketClosed
	}
	return nil
}

// Close implements Socket. The close event is still delivered.
func (s *wsSocket) Close() error {
	s.closing.Store(true)
	s.finish()
	return nil
}

func (s *wsSocket) run(ctx context.Context, url, origin string) {
	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		s.fail(fmt.Errorf("websocket config: %w", err))
		return
	}

	conn, err := cfg.DialContext(ctx)
	if err != nil {
		s.fail(fmt.Errorf("dial %s: %w", url, err))
		return
	}

	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.emit(func() {
		if s.listener.OnOpen != nil {
			s.listener.OnOpen()
		}
	})

	go s.writeLoop(conn)
	s.readLoop(conn)
}

func (s *wsSocket) readLoop(conn *websocket.Conn) {
	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if !s.closing.Load() && !errors.Is(err, io.EOF) {
				s.emitError(fmt.Errorf("receive: %w", err))
			}
			s.finish()
			return
		}
		s.emit(func() {
			if s.listener.OnMessage != nil {
				s.listener.OnMessage(data)
			}
		})
	}
}

func (s *wsSocket) writeLoop(conn *websocket.Conn) {
	for {
		if s.writes.Closed() {
			return
		}
		data, ok := s.writes.TryDequeue()
		if !ok {
			<-s.writes.Wait()
			continue
		}
		if err := websocket.Message.Send(conn, string(data)); err != nil {
			if !s.closing.Load() {
				s.emitError(fmt.Errorf("send: %w", err))
			}
			s.finish()
			return
		}
	}
}

func (s *wsSocket) fail(err error) {
	s.emitError(err)
	s.finish()
}

// finish tears the socket down and reports close exactly once.
func (s *wsSocket) finish() {
	s.closeOnce.Do(func() {
		s.writes.Close()

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			if err := conn.Close(); err != nil {
				s.logger.Debug("close connection", "error", err)
			}
		}

		s.emit(func() {
			if s.listener.OnClose != nil {
				s.listener.OnClose()
			}
		})
	})
}

func (s *wsSocket) emitError(err error) {
	s.emit(func() {
		if s.listener.OnError != nil {
			s.listener.OnError(err)
		}
	})
}

func (s *wsSocket) emit(fn func()) {
	if !s.post(fn) {
		s.logger.Debug("dispatcher stopped, dropping socket callback")
	}
}
