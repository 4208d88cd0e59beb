package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/readmeplay/internal/wire"
)

// ErrSessionNotFound is returned by ReadSession for unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// ReadSession returns one session by id.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document, ref, endpoint, commands, seq, started_at
		FROM sessions
		WHERE id = ?
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return sess, err
}

// ListSessions returns the most recent sessions, oldest first.
// A limit <= 0 returns every session.
//
// Returns an empty slice (not nil) if no sessions exist.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document, ref, endpoint, commands, seq, started_at FROM (
			SELECT * FROM sessions
			ORDER BY seq DESC, id COLLATE BINARY DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ListDeliveries returns every delivery of a session in seq order.
//
// Returns an empty slice (not nil) if the session has no deliveries.
func (s *Store) ListDeliveries(ctx context.Context, sessionID string) ([]Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, source, kind, trigger_time, position, line, body, created_at
		FROM deliveries
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := []Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return deliveries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess    Session
		started string
	)
	if err := row.Scan(
		&sess.ID,
		&sess.Document,
		&sess.Ref,
		&sess.Endpoint,
		&sess.Commands,
		&sess.Seq,
		&started,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}

	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return Session{}, fmt.Errorf("scan session %s: started_at: %w", sess.ID, err)
	}
	sess.StartedAt = t
	return sess, nil
}

func scanDelivery(row scanner) (Delivery, error) {
	var (
		d       Delivery
		source  string
		trigger sql.NullInt64
		body    string
		created string
	)
	if err := row.Scan(
		&d.ID,
		&d.SessionID,
		&d.Seq,
		&source,
		&d.Kind,
		&trigger,
		&d.Position,
		&d.Line,
		&body,
		&created,
	); err != nil {
		return Delivery{}, fmt.Errorf("scan delivery: %w", err)
	}

	d.Source = Source(source)
	if trigger.Valid {
		tt := int(trigger.Int64)
		d.TriggerTime = &tt
	}

	msg, err := wire.Unmarshal([]byte(body))
	if err != nil {
		return Delivery{}, fmt.Errorf("scan delivery %s: body: %w", d.ID, err)
	}
	d.Body = msg

	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Delivery{}, fmt.Errorf("scan delivery %s: created_at: %w", d.ID, err)
	}
	d.CreatedAt = t
	return d, nil
}
