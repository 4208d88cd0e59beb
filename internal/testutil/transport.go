// Package testutil provides deterministic fakes for the delivery channel,
// the playback clock and id generation.
package testutil

import (
	"errors"
	"time"

	"github.com/roach88/readmeplay/internal/channel"
	"github.com/roach88/readmeplay/internal/wire"
)

// ErrFakeClosed is returned by FakeSocket.Send after Close.
var ErrFakeClosed = errors.New("fake socket closed")

// FakeTransport records every Open and hands back controllable sockets.
//
// Nothing happens asynchronously: the test decides when a socket opens,
// errors or closes by calling the FakeSocket methods, which invoke the
// listener on the calling goroutine.
type FakeTransport struct {
	URLs    []string
	Sockets []*FakeSocket
}

// Open implements channel.Transport.
func (t *FakeTransport) Open(url string, l channel.Listener) channel.Socket {
	s := &FakeSocket{listener: l}
	t.URLs = append(t.URLs, url)
	t.Sockets = append(t.Sockets, s)
	return s
}

// Last returns the most recently opened socket, or nil.
func (t *FakeTransport) Last() *FakeSocket {
	if len(t.Sockets) == 0 {
		return nil
	}
	return t.Sockets[len(t.Sockets)-1]
}

// Sent returns every frame sent on every socket, in order.
func (t *FakeTransport) Sent() [][]byte {
	var out [][]byte
	for _, s := range t.Sockets {
		out = append(out, s.Sent...)
	}
	return out
}

// FakeSocket is a socket whose lifecycle is driven by the test.
type FakeSocket struct {
	listener channel.Listener

	Sent    [][]byte
	Closed  bool
	SendErr error // returned by Send while non-nil
}

// Send implements channel.Socket.
func (s *FakeSocket) Send(data []byte) error {
	if s.Closed {
		return ErrFakeClosed
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	s.Sent = append(s.Sent, data)
	return nil
}

// Close implements channel.Socket. It does not fire OnClose; call Drop for
// a peer-initiated close.
func (s *FakeSocket) Close() error {
	s.Closed = true
	return nil
}

// Accept simulates a successful open.
func (s *FakeSocket) Accept() {
	s.listener.OnOpen()
}

// Fail simulates an error event.
func (s *FakeSocket) Fail(err error) {
	s.listener.OnError(err)
}

// Drop simulates the close event.
func (s *FakeSocket) Drop() {
	s.Closed = true
	s.listener.OnClose()
}

// Deliver simulates an inbound frame.
func (s *FakeSocket) Deliver(data []byte) {
	s.listener.OnMessage(data)
}

// Messages decodes every sent frame, skipping keepalive pings.
func (s *FakeSocket) Messages() []wire.Message {
	return decode(s.Sent, false)
}

// Messages decodes every frame sent on any socket, skipping pings.
func (t *FakeTransport) Messages() []wire.Message {
	return decode(t.Sent(), false)
}

// Pings counts keepalive frames sent on s.
func (s *FakeSocket) Pings() int {
	n := 0
	for _, m := range decode(s.Sent, true) {
		if m.Type == wire.TypePing {
			n++
		}
	}
	return n
}

func decode(frames [][]byte, withPings bool) []wire.Message {
	var out []wire.Message
	for _, f := range frames {
		m, err := wire.Unmarshal(f)
		if err != nil {
			continue
		}
		if m.Type == wire.TypePing && !withPings {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ManualTicker implements channel.Ticker; ticks happen when the test calls
// Tick.
type ManualTicker struct {
	Intervals []time.Duration
	fns       map[int]func()
	next      int
}

// Every implements channel.Ticker.
func (t *ManualTicker) Every(interval time.Duration, fn func()) (stop func()) {
	if t.fns == nil {
		t.fns = make(map[int]func())
	}
	id := t.next
	t.next++
	t.fns[id] = fn
	t.Intervals = append(t.Intervals, interval)
	return func() { delete(t.fns, id) }
}

// Tick runs every active callback once, in registration order.
func (t *ManualTicker) Tick() {
	for id := 0; id < t.next; id++ {
		if fn, ok := t.fns[id]; ok {
			fn()
		}
	}
}

// Active returns the number of running tickers.
func (t *ManualTicker) Active() int {
	return len(t.fns)
}
