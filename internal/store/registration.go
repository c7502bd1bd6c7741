package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// AddAttendee inserts the (event, user) membership and, when the row is new,
// runs then inside the same transaction before committing. The insert relies
// on the primary key, so of two concurrent calls for the same pair exactly one
// succeeds and the other gets ErrAlreadyRegistered. The new attendee count is
// returned.
func (s *Store) AddAttendee(ctx context.Context, eventID, userID string, then func(pgx.Tx) error) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO event_attendees (event_id, user_id) VALUES ($1,$2)
		 ON CONFLICT (event_id, user_id) DO NOTHING`,
		eventID, userID,
	)
	if err != nil {
		return 0, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrAlreadyRegistered
	}

	if then != nil {
		if err := then(tx); err != nil {
			return 0, err
		}
	}

	n, err := countAttendees(ctx, tx, eventID)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit(ctx)
}

// RemoveAttendee deletes the membership or returns ErrNotRegistered.
func (s *Store) RemoveAttendee(ctx context.Context, eventID, userID string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM event_attendees WHERE event_id=$1 AND user_id=$2`,
		eventID, userID,
	)
	if err != nil {
		return 0, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotRegistered
	}

	n, err := countAttendees(ctx, tx, eventID)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit(ctx)
}

func countAttendees(ctx context.Context, tx pgx.Tx, eventID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_attendees WHERE event_id=$1`, eventID,
	).Scan(&n)
	return n, err
}
