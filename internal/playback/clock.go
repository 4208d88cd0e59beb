// Package playback provides the playback position source a session follows.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/readmeplay/internal/events"
)

// ErrInvalidRate is returned by SetRate for non-positive rates.
var ErrInvalidRate = errors.New("playback rate must be positive")

// DefaultTickInterval is how often Run publishes while playing.
const DefaultTickInterval = 250 * time.Millisecond

// Source is a clock whose position the session subscribes to.
type Source interface {
	Position() float64
	Subscribe(handler func(pos float64)) (unsubscribe func())
}

// Clock is a controllable media clock measured in seconds.
//
// The position advances with wall time scaled by the rate while playing.
// Seek publishes immediately and may move the position backward.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers run on
// the goroutine that caused the update (Run for ticks, the caller for Play,
// Pause and Seek) and must not call back into the Clock's Subscribe.
type Clock struct {
	mu      sync.Mutex
	now     func() time.Time
	playing bool
	rate    float64
	base    float64
	anchor  time.Time

	subsMu sync.Mutex
	subs   events.Hub[float64]
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithRate sets the initial playback rate.
func WithRate(rate float64) Option {
	return func(c *Clock) {
		if rate > 0 {
			c.rate = rate
		}
	}
}

// NewClock creates a paused clock at position 0.
func NewClock(opts ...Option) *Clock {
	c := &Clock{now: time.Now, rate: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Position returns the current position in seconds.
func (c *Clock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Clock) positionLocked() float64 {
	if !c.playing {
		return c.base
	}
	return c.base + c.now().Sub(c.anchor).Seconds()*c.rate
}

// Playing reports whether the clock is advancing.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Rate returns the playback rate.
func (c *Clock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Subscribe registers handler for position updates.
func (c *Clock) Subscribe(handler func(pos float64)) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	unsub := c.subs.Subscribe(handler)
	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		unsub()
	}
}

// Subscribers returns the number of active subscriptions.
func (c *Clock) Subscribers() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return c.subs.Len()
}

// Play starts advancing the clock and publishes the current position.
func (c *Clock) Play() {
	c.mu.Lock()
	if !c.playing {
		c.anchor = c.now()
		c.playing = true
	}
	pos := c.positionLocked()
	c.mu.Unlock()

	c.publish(pos)
}

// Pause freezes the clock and publishes the frozen position.
func (c *Clock) Pause() {
	c.mu.Lock()
	c.base = c.positionLocked()
	c.playing = false
	pos := c.base
	c.mu.Unlock()

	c.publish(pos)
}

// Seek jumps to t seconds (clamped at 0) and publishes it.
func (c *Clock) Seek(t float64) {
	if t < 0 {
		t = 0
	}
	c.mu.Lock()
	c.base = t
	c.anchor = c.now()
	c.mu.Unlock()

	c.publish(t)
}

// SetRate changes the playback speed without moving the position.
func (c *Clock) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = c.positionLocked()
	c.anchor = c.now()
	c.rate = rate
	return nil
}

// Tick publishes the current position if the clock is playing.
func (c *Clock) Tick() {
	c.mu.Lock()
	playing := c.playing
	pos := c.positionLocked()
	c.mu.Unlock()

	if playing {
		c.publish(pos)
	}
}

// Run calls Tick every interval until ctx is cancelled.
func (c *Clock) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Tick()
		}
	}
}

func (c *Clock) publish(pos float64) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs.Publish(pos)
}
