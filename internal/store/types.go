package store

import (
	"time"

	"github.com/roach88/readmeplay/internal/wire"
)

// Source says why a message was delivered.
type Source string

const (
	SourceScheduled Source = "scheduled"
	SourceManual    Source = "manual"
)

// Session is one playback of one document.
type Session struct {
	ID        string    `json:"id"`
	Document  string    `json:"document"`
	Ref       string    `json:"ref,omitempty"`
	Endpoint  string    `json:"endpoint"`
	Commands  int       `json:"commands"`
	Seq       int64     `json:"seq"`
	StartedAt time.Time `json:"started_at"`
}

// Delivery is one message handed to the delivery channel.
//
// TriggerTime is nil for manual sends.
type Delivery struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Seq         int64        `json:"seq"`
	Source      Source       `json:"source"`
	Kind        string       `json:"kind"`
	TriggerTime *int         `json:"trigger_time,omitempty"`
	Position    float64      `json:"position"`
	Line        int          `json:"line,omitempty"`
	Body        wire.Message `json:"body"`
	CreatedAt   time.Time    `json:"created_at"`
}
