package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-management-api/internal/config"
	"event-management-api/internal/metrics"
)

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func job(args RegistrationEmailArgs) *river.Job[RegistrationEmailArgs] {
	return &river.Job[RegistrationEmailArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Kind: JobKindRegistrationEmail, Attempt: 1, MaxAttempts: 5},
		Args:   args,
	}
}

var sampleArgs = RegistrationEmailArgs{
	EventID:        "evt-1",
	EventTitle:     "Go Meetup",
	OrganizerEmail: "organizer@gmail.com",
	AttendeeEmail:  "user@gmail.com",
}

func TestRegistrationMessage(t *testing.T) {
	msg := RegistrationMessage(sampleArgs)
	assert.Equal(t, "user@gmail.com", msg.To)
	assert.Equal(t, "You were registered to event 'Go Meetup'", msg.Subject)
	assert.Contains(t, msg.Text, "organizer@gmail.com")
	assert.Contains(t, msg.Text, "'Go Meetup'")
}

func TestWorkerSends(t *testing.T) {
	mailer := &recordingMailer{}
	w := NewRegistrationEmailWorker(mailer, time.Second, zerolog.Nop())
	before := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("sent"))

	require.NoError(t, w.Work(context.Background(), job(sampleArgs)))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "user@gmail.com", mailer.sent[0].To)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("sent")))
}

func TestWorkerReturnsDeliveryErrorForRetry(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	w := NewRegistrationEmailWorker(mailer, time.Second, zerolog.Nop())

	err := w.Work(context.Background(), job(sampleArgs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestWorkerCancelsJobWithoutRecipient(t *testing.T) {
	args := sampleArgs
	args.AttendeeEmail = ""

	mailer := &recordingMailer{}
	w := NewRegistrationEmailWorker(mailer, time.Second, zerolog.Nop())
	err := w.Work(context.Background(), job(args))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipient")
	assert.Empty(t, mailer.sent)
}

func TestWorkerTimeout(t *testing.T) {
	w := NewRegistrationEmailWorker(&recordingMailer{}, 7*time.Second, zerolog.Nop())
	assert.Equal(t, 7*time.Second, w.Timeout(job(sampleArgs)))
}

func TestArgsRouting(t *testing.T) {
	assert.Equal(t, JobKindRegistrationEmail, sampleArgs.Kind())
	assert.Equal(t, QueueNotifications, sampleArgs.InsertOpts().Queue)
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := NewRetryPolicy()
	attempted := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{20, 30 * time.Minute},
	}
	for _, tt := range tests {
		next := p.NextRetry(&rivertype.JobRow{Attempt: tt.attempt, AttemptedAt: &attempted})
		assert.Equal(t, attempted.Add(tt.want), next, "attempt %d", tt.attempt)
	}
}

func TestNewMailerWithoutKeyLogsOnly(t *testing.T) {
	m := NewMailer(config.MailConfig{}, zerolog.Nop())
	_, ok := m.(*LogMailer)
	require.True(t, ok)
	assert.NoError(t, m.Send(context.Background(), RegistrationMessage(sampleArgs)))

	m = NewMailer(config.MailConfig{ResendAPIKey: "re_test", From: "events@example.com"}, zerolog.Nop())
	_, ok = m.(*ResendMailer)
	assert.True(t, ok)
}
