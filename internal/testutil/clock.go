package testutil

import (
	"sync"

	"github.com/roach88/readmeplay/internal/events"
)

// ManualClock is a playback position source moved explicitly by the test.
//
// Thread-safety: all methods are safe for concurrent use; subscribers run
// on the goroutine that calls Set.
type ManualClock struct {
	mu     sync.Mutex
	pos    float64
	subsMu sync.Mutex
	subs   events.Hub[float64]
}

// NewManualClock creates a clock at position 0.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Position returns the last position set.
func (c *ManualClock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Subscribe registers handler for position updates.
func (c *ManualClock) Subscribe(handler func(pos float64)) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	unsub := c.subs.Subscribe(handler)
	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		unsub()
	}
}

// Set moves the clock (forward or backward) and notifies subscribers.
func (c *ManualClock) Set(pos float64) {
	c.mu.Lock()
	c.pos = pos
	c.mu.Unlock()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs.Publish(pos)
}

// Subscribers returns the number of active subscriptions.
func (c *ManualClock) Subscribers() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return c.subs.Len()
}

// FixedGenerator returns predetermined ids in order, then repeats the last.
//
// Thread-safety: FixedGenerator is safe for concurrent use.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator over ids. With no ids it always
// returns "test-id".
func NewFixedGenerator(ids ...string) *FixedGenerator {
	if len(ids) == 0 {
		ids = []string{"test-id"}
	}
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
