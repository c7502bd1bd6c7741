package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"event-management-api/internal/metrics"
)

// RegistrationMessage renders the email sent to a newly registered attendee.
func RegistrationMessage(args RegistrationEmailArgs) Message {
	return Message{
		To:      args.AttendeeEmail,
		Subject: fmt.Sprintf("You were registered to event '%s'", args.EventTitle),
		Text: fmt.Sprintf("Organizer %s registered you as an attendee to the event '%s'.",
			args.OrganizerEmail, args.EventTitle),
	}
}

type RegistrationEmailWorker struct {
	river.WorkerDefaults[RegistrationEmailArgs]
	mailer  Mailer
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRegistrationEmailWorker(mailer Mailer, timeout time.Duration, logger zerolog.Logger) *RegistrationEmailWorker {
	return &RegistrationEmailWorker{
		mailer:  mailer,
		timeout: timeout,
		logger:  logger.With().Str("component", "registration_email").Logger(),
	}
}

// Timeout bounds a single delivery attempt; River cancels ctx when it elapses.
func (w *RegistrationEmailWorker) Timeout(*river.Job[RegistrationEmailArgs]) time.Duration {
	return w.timeout
}

func (w *RegistrationEmailWorker) Work(ctx context.Context, job *river.Job[RegistrationEmailArgs]) error {
	if job == nil {
		return fmt.Errorf("registration email job missing")
	}
	if job.Args.AttendeeEmail == "" {
		// nothing to retry
		return river.JobCancel(fmt.Errorf("job %d has no recipient", job.ID))
	}

	if err := w.mailer.Send(ctx, RegistrationMessage(job.Args)); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return err
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	w.logger.Debug().
		Str("event_id", job.Args.EventID).
		Str("to", job.Args.AttendeeEmail).
		Int("attempt", job.Attempt).
		Msg("registration email delivered")
	return nil
}
