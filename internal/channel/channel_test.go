package channel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/readmeplay/internal/channel"
	"github.com/roach88/readmeplay/internal/testutil"
	"github.com/roach88/readmeplay/internal/wire"
)

func newTestChannel(t *testing.T) (*channel.Channel, *testutil.FakeTransport, *testutil.ManualTicker) {
	t.Helper()
	tr := &testutil.FakeTransport{}
	tk := &testutil.ManualTicker{}
	ch := channel.New(channel.Config{
		Endpoint:  "ws://executor.test:9182",
		Transport: tr,
		Ticker:    tk,
	})
	return ch, tr, tk
}

func TestChannel_StartsDisconnected(t *testing.T) {
	ch, tr, _ := newTestChannel(t)

	assert.Equal(t, channel.Disconnected, ch.State())
	assert.Equal(t, 0, ch.Pending())
	assert.Empty(t, tr.Sockets, "no socket until first use")
}

func TestChannel_EnsureConnected_ReusesInFlightSocket(t *testing.T) {
	ch, tr, _ := newTestChannel(t)

	first := ch.EnsureConnected()
	second := ch.EnsureConnected()

	assert.Equal(t, channel.Connecting, ch.State())
	assert.Same(t, first, second)
	require.Len(t, tr.Sockets, 1)
	assert.Equal(t, []string{"ws://executor.test:9182"}, tr.URLs)

	tr.Last().Accept()
	assert.Same(t, first, ch.EnsureConnected())
	assert.Len(t, tr.Sockets, 1)
}

func TestChannel_SendWhileDisconnectedQueuesAndConnects(t *testing.T) {
	ch, tr, _ := newTestChannel(t)

	ch.Send(wire.Execute("a"))
	ch.Send(wire.Execute("b"))
	ch.Send(wire.Insert("c", "f.go", "anchor"))

	assert.Equal(t, channel.Connecting, ch.State())
	assert.Equal(t, 3, ch.Pending())
	require.Len(t, tr.Sockets, 1, "sends while connecting share one attempt")
	assert.Empty(t, tr.Last().Sent)

	tr.Last().Accept()

	assert.Equal(t, channel.Open, ch.State())
	assert.Equal(t, 0, ch.Pending())
	assert.Equal(t, []wire.Message{
		wire.Execute("a"),
		wire.Execute("b"),
		wire.Insert("c", "f.go", "anchor"),
	}, tr.Last().Messages())
}

func TestChannel_SendWhileOpenTransmitsImmediately(t *testing.T) {
	ch, tr, _ := newTestChannel(t)
	ch.EnsureConnected()
	tr.Last().Accept()

	ch.Send(wire.Execute("now"))

	assert.Equal(t, 0, ch.Pending())
	assert.Equal(t, []wire.Message{wire.Execute("now")}, tr.Last().Messages())
}

func TestChannel_CloseKeepsQueueAndReconnectsLazily(t *testing.T) {
	ch, tr, tk := newTestChannel(t)
	ch.EnsureConnected()
	tr.Last().Accept()
	require.Equal(t, 1, tk.Active())

	tr.Last().Drop()
	assert.Equal(t, channel.Disconnected, ch.State())
	assert.Equal(t, 0, tk.Active(), "keepalive stops on close")

	// Nothing reconnects on its own.
	assert.Len(t, tr.Sockets, 1)

	ch.Send(wire.Execute("first"))
	ch.Send(wire.Execute("second"))
	require.Len(t, tr.Sockets, 2, "send after close opens a new socket")

	// The new attempt fails before opening.
	tr.Last().Fail(errors.New("connection refused"))
	tr.Last().Drop()
	assert.Equal(t, channel.Disconnected, ch.State())
	assert.Equal(t, 2, ch.Pending(), "failed open keeps the queue")

	ch.EnsureConnected()
	require.Len(t, tr.Sockets, 3)
	ch.Send(wire.Execute("third"))
	tr.Last().Accept()

	assert.Equal(t, []wire.Message{
		wire.Execute("first"),
		wire.Execute("second"),
		wire.Execute("third"),
	}, tr.Last().Messages(), "queued messages flush before newer ones")
	assert.Equal(t, 0, ch.Pending())
}

func TestChannel_QueueOrderingNoDropsNoDuplicates(t *testing.T) {
	ch, tr, _ := newTestChannel(t)

	var want []wire.Message
	for _, code := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		m := wire.Execute(code)
		want = append(want, m)
		ch.Send(m)
	}
	tr.Last().Accept()

	assert.Equal(t, want, tr.Messages())
}

func TestChannel_ErrorDoesNotClose(t *testing.T) {
	ch, tr, _ := newTestChannel(t)
	ch.EnsureConnected()
	tr.Last().Accept()

	var errs []error
	ch.Subscribe(channel.EventError, func(ev channel.Event) { errs = append(errs, ev.Err) })

	boom := errors.New("boom")
	tr.Last().Fail(boom)

	assert.Equal(t, channel.Open, ch.State())
	assert.False(t, tr.Last().Closed, "error must not force a close")
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)

	ch.Send(wire.Execute("still works"))
	assert.Equal(t, []wire.Message{wire.Execute("still works")}, tr.Last().Messages())
}

func TestChannel_TransmitFailureKeepsMessageAtHead(t *testing.T) {
	ch, tr, _ := newTestChannel(t)
	ch.EnsureConnected()
	tr.Last().Accept()

	sock := tr.Last()
	sock.SendErr = errors.New("write failed")
	ch.Send(wire.Execute("a"))
	ch.Send(wire.Execute("b"))
	assert.Equal(t, 2, ch.Pending())

	sock.Drop()
	ch.EnsureConnected()
	tr.Last().Accept()

	assert.Equal(t, []wire.Message{wire.Execute("a"), wire.Execute("b")}, tr.Last().Messages())
	assert.Equal(t, 0, ch.Pending())
}

func TestChannel_KeepaliveWhileOpen(t *testing.T) {
	ch, tr, tk := newTestChannel(t)
	ch.EnsureConnected()
	assert.Equal(t, 0, tk.Active(), "no keepalive before open")

	tr.Last().Accept()
	require.Equal(t, 1, tk.Active())
	assert.Equal(t, channel.DefaultKeepaliveInterval, tk.Intervals[0])

	tk.Tick()
	tk.Tick()
	assert.Equal(t, 2, tr.Last().Pings())
	assert.Empty(t, tr.Last().Messages(), "pings are not commands")
}

func TestChannel_KeepaliveErrorsAreSwallowed(t *testing.T) {
	ch, tr, tk := newTestChannel(t)
	ch.EnsureConnected()
	tr.Last().Accept()

	tr.Last().SendErr = errors.New("broken pipe")
	tk.Tick()

	assert.Equal(t, channel.Open, ch.State())
	assert.Equal(t, 0, ch.Pending(), "pings are never queued")
}

func TestChannel_StaleSocketEventsIgnored(t *testing.T) {
	ch, tr, _ := newTestChannel(t)
	ch.EnsureConnected()
	old := tr.Last()
	old.Accept()
	old.Drop()

	ch.EnsureConnected()
	current := tr.Last()
	require.NotSame(t, old, current)

	// Late callbacks from the discarded socket change nothing.
	old.Accept()
	assert.Equal(t, channel.Connecting, ch.State())
	old.Drop()
	assert.Equal(t, channel.Connecting, ch.State())

	current.Accept()
	assert.Equal(t, channel.Open, ch.State())
}

func TestChannel_StateTransitions(t *testing.T) {
	ch, tr, _ := newTestChannel(t)

	var states []channel.State
	ch.Subscribe(channel.EventStateChanged, func(ev channel.Event) { states = append(states, ev.State) })

	ch.EnsureConnected()
	tr.Last().Drop() // failed open
	ch.EnsureConnected()
	tr.Last().Accept()
	tr.Last().Drop()

	assert.Equal(t, []channel.State{
		channel.Connecting, channel.Disconnected,
		channel.Connecting, channel.Open, channel.Disconnected,
	}, states)
}

func TestChannel_Close(t *testing.T) {
	ch, tr, tk := newTestChannel(t)
	ch.Send(wire.Execute("queued"))
	sock := tr.Last()

	ch.Close()

	assert.True(t, sock.Closed)
	assert.Equal(t, channel.Disconnected, ch.State())
	assert.Equal(t, 1, ch.Pending())
	assert.Equal(t, 0, tk.Active())

	sock.Accept() // stale
	assert.Equal(t, channel.Disconnected, ch.State())

	ch.Close() // no socket, no-op
}

func TestChannel_InboundMessages(t *testing.T) {
	ch, tr, _ := newTestChannel(t)
	ch.EnsureConnected()
	tr.Last().Accept()

	var got []string
	unsub := ch.Subscribe(channel.EventMessage, func(ev channel.Event) { got = append(got, string(ev.Data)) })
	tr.Last().Deliver([]byte(`{"status":"ok"}`))
	unsub()
	tr.Last().Deliver([]byte(`ignored`))

	assert.Equal(t, []string{`{"status":"ok"}`}, got)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", channel.Disconnected.String())
	assert.Equal(t, "connecting", channel.Connecting.String())
	assert.Equal(t, "open", channel.Open.String())
	assert.Equal(t, "unknown", channel.State(42).String())
}
