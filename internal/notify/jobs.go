package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"

	"event-management-api/internal/config"
	"event-management-api/internal/metrics"
)

const (
	JobKindRegistrationEmail = "registration_email"
	QueueNotifications       = "notifications"
)

// RegistrationEmailArgs is written to the job table in the same transaction
// as the attendee row, so a committed registration always has its email queued.
type RegistrationEmailArgs struct {
	EventID        string `json:"event_id"`
	EventTitle     string `json:"event_title"`
	OrganizerEmail string `json:"organizer_email"`
	AttendeeEmail  string `json:"attendee_email"`
}

func (RegistrationEmailArgs) Kind() string { return JobKindRegistrationEmail }

func (RegistrationEmailArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueNotifications}
}

// RetryPolicy is exponential backoff capped at MaxDelay.
type RetryPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Minute}
}

func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

// ErrorHandler logs failed and panicked jobs; River keeps its own retry schedule.
type ErrorHandler struct {
	logger zerolog.Logger
}

func NewErrorHandler(logger zerolog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger.With().Str("component", "jobs").Logger()}
}

func (h *ErrorHandler) HandleError(_ context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	h.logger.Error().
		Err(err).
		Int64("job_id", job.ID).
		Str("kind", job.Kind).
		Int("attempt", job.Attempt).
		Int("max_attempts", job.MaxAttempts).
		Msg("job failed")
	if job.Attempt >= job.MaxAttempts {
		metrics.NotificationsTotal.WithLabelValues("discarded").Inc()
	}
	return nil
}

func (h *ErrorHandler) HandlePanic(_ context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	h.logger.Error().
		Int64("job_id", job.ID).
		Str("kind", job.Kind).
		Interface("panic", panicVal).
		Str("trace", trace).
		Msg("job panicked")
	return nil
}

// NewClient builds the River client that both enqueues and works notification jobs.
func NewClient(pool *pgxpool.Pool, workers *river.Workers, cfg config.JobsConfig, slogger *slog.Logger, logger zerolog.Logger) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Workers:     workers,
		MaxAttempts: cfg.MaxAttempts,
		RetryPolicy: NewRetryPolicy(),
		Queues: map[string]river.QueueConfig{
			QueueNotifications: {MaxWorkers: cfg.MaxWorkers},
		},
		Logger:       slogger,
		ErrorHandler: NewErrorHandler(logger),
	})
}

// Migrate creates or upgrades River's own tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate: %w", err)
	}
	return nil
}

type Enqueuer struct {
	client *river.Client[pgx.Tx]
}

func NewEnqueuer(client *river.Client[pgx.Tx]) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueRegistrationEmail inserts the job on tx; it becomes visible to
// workers only when tx commits.
func (e *Enqueuer) EnqueueRegistrationEmail(ctx context.Context, tx pgx.Tx, args RegistrationEmailArgs) error {
	if _, err := e.client.InsertTx(ctx, tx, args, nil); err != nil {
		return fmt.Errorf("enqueue registration email: %w", err)
	}
	return nil
}
