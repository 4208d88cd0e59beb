package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	t time.Time
}

func (f *fakeNow) Now() time.Time           { return f.t }
func (f *fakeNow) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestClock(opts ...Option) (*Clock, *fakeNow) {
	now := &fakeNow{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewClock(append([]Option{WithNow(now.Now)}, opts...)...), now
}

func TestClock_PausedByDefault(t *testing.T) {
	c, now := newTestClock()
	now.Advance(10 * time.Second)

	assert.False(t, c.Playing())
	assert.Equal(t, 0.0, c.Position())
}

func TestClock_PlayAdvancesWithWallTime(t *testing.T) {
	c, now := newTestClock()
	c.Play()
	now.Advance(3 * time.Second)

	assert.InDelta(t, 3.0, c.Position(), 1e-9)

	c.Pause()
	now.Advance(5 * time.Second)
	assert.InDelta(t, 3.0, c.Position(), 1e-9)

	c.Play()
	now.Advance(time.Second)
	assert.InDelta(t, 4.0, c.Position(), 1e-9)
}

func TestClock_SeekPublishesImmediatelyAndMayGoBackward(t *testing.T) {
	c, _ := newTestClock()
	var got []float64
	c.Subscribe(func(p float64) { got = append(got, p) })

	c.Seek(30)
	c.Seek(12)
	c.Seek(-4)

	assert.Equal(t, []float64{30, 12, 0}, got)
}

func TestClock_SetRate(t *testing.T) {
	c, now := newTestClock()
	c.Play()
	now.Advance(2 * time.Second)

	require.NoError(t, c.SetRate(2))
	now.Advance(2 * time.Second)
	assert.InDelta(t, 6.0, c.Position(), 1e-9)
	assert.Equal(t, 2.0, c.Rate())

	assert.ErrorIs(t, c.SetRate(0), ErrInvalidRate)
	assert.ErrorIs(t, c.SetRate(-1), ErrInvalidRate)
	assert.Equal(t, 2.0, c.Rate())
}

func TestClock_TickOnlyPublishesWhilePlaying(t *testing.T) {
	c, now := newTestClock()
	var got []float64
	unsub := c.Subscribe(func(p float64) { got = append(got, p) })

	c.Tick()
	assert.Empty(t, got)

	c.Play()
	now.Advance(time.Second)
	c.Tick()
	unsub()
	c.Tick()

	assert.Equal(t, []float64{0, 1}, got)
}

func TestClock_RunStopsOnCancel(t *testing.T) {
	c := NewClock()
	c.Play()

	var (
		mu  sync.Mutex
		got int
	)
	c.Subscribe(func(float64) {
		mu.Lock()
		got++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got >= 3
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWithRate_IgnoresNonPositive(t *testing.T) {
	assert.Equal(t, 1.0, NewClock(WithRate(0)).Rate())
	assert.Equal(t, 1.5, NewClock(WithRate(1.5)).Rate())
}

func TestClock_Subscribers(t *testing.T) {
	c := NewClock()
	unsub := c.Subscribe(func(float64) {})
	assert.Equal(t, 1, c.Subscribers())
	unsub()
	assert.Equal(t, 0, c.Subscribers())
}
