package store

import (
	"context"

	"event-management-api/internal/model"
)

const eventColumns = `e.id, e.title, e.description, e.location, e.date,
	e.organizer_id, u.email,
	(SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id),
	e.created_at, e.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner, e *model.Event) error {
	return row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.Date,
		&e.OrganizerID, &e.OrganizerEmail, &e.AttendeeCount,
		&e.CreatedAt, &e.UpdatedAt)
}

func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (id, title, description, location, date, organizer_id)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at, updated_at`,
		e.ID, e.Title, e.Description, e.Location, e.Date, e.OrganizerID,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	return s.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, e.OrganizerID).
		Scan(&e.OrganizerEmail)
}

// GetEvent loads the event together with its attendee emails.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e := &model.Event{}
	row := s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+`
		 FROM events e JOIN users u ON u.id = e.organizer_id
		 WHERE e.id = $1`, id)
	if err := scanEvent(row, e); err != nil {
		return nil, translate(err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT u.email FROM event_attendees a JOIN users u ON u.id = a.user_id
		 WHERE a.event_id = $1 ORDER BY a.registered_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	e.AttendeeEmails = []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		e.AttendeeEmails = append(e.AttendeeEmails, email)
	}
	return e, rows.Err()
}

// ListEvents returns every event ordered by date. search is split on
// whitespace; an event is kept when each term occurs, ignoring case, in its
// title, description or location.
func (s *Store) ListEvents(ctx context.Context, search string) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events e JOIN users u ON u.id = e.organizer_id
		 WHERE NOT EXISTS (
		     SELECT 1 FROM unnest($1::text[]) AS t(term)
		     WHERE NOT (e.title ILIKE '%' || t.term || '%'
		             OR e.description ILIKE '%' || t.term || '%'
		             OR e.location ILIKE '%' || t.term || '%'))
		 ORDER BY e.date, e.created_at`, searchTerms(search),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEvent rewrites the editable fields. The organizer is part of the
// filter, never of the SET list.
func (s *Store) UpdateEvent(ctx context.Context, e *model.Event) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events
		 SET title=$1, description=$2, location=$3, date=$4, updated_at=NOW()
		 WHERE id=$5 AND organizer_id=$6`,
		e.Title, e.Description, e.Location, e.Date, e.ID, e.OrganizerID,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+`
		 FROM events e JOIN users u ON u.id = e.organizer_id
		 WHERE e.id = $1`, e.ID)
	return translate(scanEvent(row, e))
}

// DeleteEvent removes the event; attendee rows go with it via ON DELETE CASCADE.
func (s *Store) DeleteEvent(ctx context.Context, id, organizerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM events WHERE id=$1 AND organizer_id=$2`, id, organizerID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
