package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeLayout = time.RFC3339Nano

// WriteSession records the start of a session and returns the stored row.
// Missing ID, Seq and StartedAt are filled in.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing the same session
// twice keeps the first row.
func (s *Store) WriteSession(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.Must(uuid.NewV7()).String()
	}
	if sess.Seq == 0 {
		sess.Seq = s.clock.Next()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, document, ref, endpoint, commands, seq, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.Document,
		sess.Ref,
		sess.Endpoint,
		sess.Commands,
		sess.Seq,
		sess.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return Session{}, fmt.Errorf("write session: %w", err)
	}
	return sess, nil
}

// WriteDelivery appends a delivery and returns the stored row.
// Missing ID, Seq, Kind and CreatedAt are filled in.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteDelivery(ctx context.Context, d Delivery) (Delivery, error) {
	body, err := d.Body.Marshal()
	if err != nil {
		return Delivery{}, fmt.Errorf("write delivery: %w", err)
	}
	switch d.Source {
	case SourceScheduled, SourceManual:
	default:
		return Delivery{}, fmt.Errorf("write delivery: unknown source %q", d.Source)
	}

	if d.ID == "" {
		d.ID = uuid.Must(uuid.NewV7()).String()
	}
	if d.Seq == 0 {
		d.Seq = s.clock.Next()
	}
	if d.Kind == "" {
		d.Kind = d.Body.Type
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	var trigger sql.NullInt64
	if d.TriggerTime != nil {
		trigger = sql.NullInt64{Int64: int64(*d.TriggerTime), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deliveries
		(id, session_id, seq, source, kind, trigger_time, position, line, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.SessionID,
		d.Seq,
		string(d.Source),
		d.Kind,
		trigger,
		d.Position,
		d.Line,
		string(body),
		d.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Delivery{}, fmt.Errorf("write delivery: %w", err)
	}
	return d, nil
}
