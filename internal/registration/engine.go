// Package registration owns the attendee-set state transitions of an event.
// Membership is only changed through Engine.Register and Engine.Unregister.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"event-management-api/internal/metrics"
	"event-management-api/internal/model"
	"event-management-api/internal/notify"
	"event-management-api/internal/store"
)

var (
	ErrMissingField      = errors.New("email is not defined")
	ErrUnknownUser       = errors.New("user with such email does not exist")
	ErrEventNotFound     = errors.New("event not found")
	ErrAlreadyRegistered = errors.New("user with this email has been already registered")
	ErrNotRegistered     = errors.New("user with this email is not registered")
)

const (
	StatusRegistered   = "registered"
	StatusUnregistered = "unregistered"
)

type Result struct {
	Status        string `json:"status"`
	AttendeeCount int    `json:"attendee_count"`
}

type Repository interface {
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	AddAttendee(ctx context.Context, eventID, userID string, then func(pgx.Tx) error) (int, error)
	RemoveAttendee(ctx context.Context, eventID, userID string) (int, error)
}

// Notifier enqueues the registration email on the membership transaction.
type Notifier interface {
	EnqueueRegistrationEmail(ctx context.Context, tx pgx.Tx, args notify.RegistrationEmailArgs) error
}

type Engine struct {
	repo     Repository
	notifier Notifier
	logger   zerolog.Logger
}

func New(repo Repository, notifier Notifier, logger zerolog.Logger) *Engine {
	return &Engine{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With().Str("component", "registration").Logger(),
	}
}

func (e *Engine) Register(ctx context.Context, eventID, email string) (Result, error) {
	user, event, err := e.resolve(ctx, eventID, email)
	if err != nil {
		observe("register", err)
		return Result{}, err
	}

	n, err := e.repo.AddAttendee(ctx, event.ID, user.ID, func(tx pgx.Tx) error {
		return e.notifier.EnqueueRegistrationEmail(ctx, tx, notify.RegistrationEmailArgs{
			EventID:        event.ID,
			EventTitle:     event.Title,
			OrganizerEmail: event.OrganizerEmail,
			AttendeeEmail:  user.Email,
		})
	})
	switch {
	case errors.Is(err, store.ErrAlreadyRegistered):
		err = ErrAlreadyRegistered
	case errors.Is(err, store.ErrNotFound):
		err = ErrEventNotFound
	case err != nil:
		err = fmt.Errorf("add attendee: %w", err)
	}
	observe("register", err)
	if err != nil {
		return Result{}, err
	}

	e.log(ctx).Info().
		Str("event_id", event.ID).
		Str("user_id", user.ID).
		Int("attendees", n).
		Msg("attendee registered")
	return Result{Status: StatusRegistered, AttendeeCount: n}, nil
}

func (e *Engine) Unregister(ctx context.Context, eventID, email string) (Result, error) {
	user, event, err := e.resolve(ctx, eventID, email)
	if err != nil {
		observe("unregister", err)
		return Result{}, err
	}

	n, err := e.repo.RemoveAttendee(ctx, event.ID, user.ID)
	switch {
	case errors.Is(err, store.ErrNotRegistered):
		err = ErrNotRegistered
	case errors.Is(err, store.ErrNotFound):
		err = ErrEventNotFound
	case err != nil:
		err = fmt.Errorf("remove attendee: %w", err)
	}
	observe("unregister", err)
	if err != nil {
		return Result{}, err
	}

	e.log(ctx).Info().
		Str("event_id", event.ID).
		Str("user_id", user.ID).
		Int("attendees", n).
		Msg("attendee unregistered")
	return Result{Status: StatusUnregistered, AttendeeCount: n}, nil
}

// resolve validates the email and loads the user before the event, so a bad
// email is reported even when the event id is also wrong.
func (e *Engine) resolve(ctx context.Context, eventID, email string) (*model.User, *model.Event, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil, ErrMissingField
	}

	user, err := e.repo.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrUnknownUser
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	event, err := e.repo.GetEvent(ctx, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrEventNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load event: %w", err)
	}
	return user, event, nil
}

// log prefers the request-scoped logger carrying the request id.
func (e *Engine) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &e.logger
}

func observe(action string, err error) {
	metrics.RegistrationsTotal.WithLabelValues(action, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, ErrEventNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyRegistered):
		return "conflict"
	case errors.Is(err, ErrNotRegistered):
		return "not_registered"
	}
	return "error"
}
