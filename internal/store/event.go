package store

import (
	"database/sql"
	"time"
)

// EventKind says which HUD value changed.
type EventKind string

const (
	// EventMode records an interaction mode change.
	EventMode EventKind = "mode"
	// EventRegion records a change of the region facing the viewer.
	EventRegion EventKind = "region"
)

// Event is one transition recorded during a session.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Kind      EventKind `json:"kind"`
	Value     string    `json:"value"`
	At        time.Time `json:"at"`
}

// EventRepository provides access to session events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Add appends an event and sets its ID.
func (r *EventRepository) Add(e *Event) error {
	result, err := r.db.Exec(
		`INSERT INTO session_events (session_id, kind, value, at) VALUES (?, ?, ?, ?)`,
		e.SessionID, string(e.Kind), e.Value, e.At,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListBySession returns a session's events in the order they happened.
func (r *EventRepository) ListBySession(sessionID string) ([]*Event, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, kind, value, at FROM session_events
		 WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var kind string
		if err := rows.Scan(&e.ID, &e.SessionID, &kind, &e.Value, &e.At); err != nil {
			return nil, err
		}
		e.Kind = EventKind(kind)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
