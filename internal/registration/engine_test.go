package registration_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-management-api/internal/metrics"
	"event-management-api/internal/model"
	"event-management-api/internal/registration"
	"event-management-api/internal/storetest"
)

type fixture struct {
	engine    *registration.Engine
	mem       *storetest.Memory
	outbox    *storetest.Outbox
	event     *model.Event
	organizer *model.User
	user      *model.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := storetest.NewMemory()
	outbox := &storetest.Outbox{}

	organizer := &model.User{ID: uuid.New().String(), Email: "organizer@gmail.com"}
	user := &model.User{ID: uuid.New().String(), Email: "user@gmail.com"}
	require.NoError(t, mem.CreateUser(ctx, organizer))
	require.NoError(t, mem.CreateUser(ctx, user))

	event := &model.Event{
		ID:          uuid.New().String(),
		Title:       "Test Event",
		Description: "Test Description",
		Location:    "Test Location",
		Date:        time.Now().Add(30 * 24 * time.Hour),
		OrganizerID: organizer.ID,
	}
	require.NoError(t, mem.CreateEvent(ctx, event))

	return &fixture{
		engine:    registration.New(mem, outbox, zerolog.Nop()),
		mem:       mem,
		outbox:    outbox,
		event:     event,
		organizer: organizer,
		user:      user,
	}
}

func TestRegisterAddsAttendeeAndQueuesEmail(t *testing.T) {
	f := setup(t)

	res, err := f.engine.Register(context.Background(), f.event.ID, "user@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, registration.StatusRegistered, res.Status)
	assert.Equal(t, 1, res.AttendeeCount)
	assert.Equal(t, 1, f.mem.AttendeeCount(f.event.ID))

	require.Equal(t, 1, f.outbox.Len())
	job := f.outbox.Jobs[0]
	assert.Equal(t, "user@gmail.com", job.AttendeeEmail)
	assert.Equal(t, "organizer@gmail.com", job.OrganizerEmail)
	assert.Equal(t, "Test Event", job.EventTitle)
}

func TestRegisterTwiceConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engine.Register(ctx, f.event.ID, "user@gmail.com")
	require.NoError(t, err)

	_, err = f.engine.Register(ctx, f.event.ID, "user@gmail.com")
	assert.ErrorIs(t, err, registration.ErrAlreadyRegistered)
	assert.Equal(t, 1, f.mem.AttendeeCount(f.event.ID))
	assert.Equal(t, 1, f.outbox.Len(), "no second email")
}

func TestRegisterValidation(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name    string
		eventID string
		email   string
		want    error
	}{
		{"missing email", f.event.ID, "", registration.ErrMissingField},
		{"blank email", f.event.ID, "   ", registration.ErrMissingField},
		{"unknown user", f.event.ID, "nonexistent_user@gmail.com", registration.ErrUnknownUser},
		{"unknown event", uuid.New().String(), "user@gmail.com", registration.ErrEventNotFound},
		{"unknown user wins over unknown event", uuid.New().String(), "nobody@gmail.com", registration.ErrUnknownUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Register(context.Background(), tt.eventID, tt.email)
			assert.ErrorIs(t, err, tt.want)
			_, err = f.engine.Unregister(context.Background(), tt.eventID, tt.email)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, f.outbox.Len())
}

func TestRegisterEmailIsCaseInsensitive(t *testing.T) {
	f := setup(t)

	_, err := f.engine.Register(context.Background(), f.event.ID, "  USER@gmail.com ")
	require.NoError(t, err)
	assert.Equal(t, "user@gmail.com", f.outbox.Jobs[0].AttendeeEmail)
}

func TestRegisterRollsBackWhenEnqueueFails(t *testing.T) {
	f := setup(t)
	f.outbox.Err = errors.New("queue unavailable")

	_, err := f.engine.Register(context.Background(), f.event.ID, "user@gmail.com")
	require.Error(t, err)
	assert.Zero(t, f.mem.AttendeeCount(f.event.ID))
}

func TestUnregisterRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	before := f.mem.AttendeeCount(f.event.ID)

	_, err := f.engine.Register(ctx, f.event.ID, "user@gmail.com")
	require.NoError(t, err)

	res, err := f.engine.Unregister(ctx, f.event.ID, "user@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, registration.StatusUnregistered, res.Status)
	assert.Equal(t, before, res.AttendeeCount)
	assert.Equal(t, before, f.mem.AttendeeCount(f.event.ID))

	_, err = f.engine.Unregister(ctx, f.event.ID, "user@gmail.com")
	assert.ErrorIs(t, err, registration.ErrNotRegistered)
}

func TestUnregisterNonMember(t *testing.T) {
	f := setup(t)

	_, err := f.engine.Unregister(context.Background(), f.event.ID, "organizer@gmail.com")
	assert.ErrorIs(t, err, registration.ErrNotRegistered)
}

func TestConcurrentRegisterSingleWinner(t *testing.T) {
	f := setup(t)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Register(context.Background(), f.event.ID, "user@gmail.com")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, registration.ErrAlreadyRegistered):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, f.outbox.Len())
}

func TestRegistrationMetrics(t *testing.T) {
	f := setup(t)
	ok := metrics.RegistrationsTotal.WithLabelValues("register", "ok")
	conflict := metrics.RegistrationsTotal.WithLabelValues("register", "conflict")
	okBefore, conflictBefore := testutil.ToFloat64(ok), testutil.ToFloat64(conflict)

	_, _ = f.engine.Register(context.Background(), f.event.ID, "user@gmail.com")
	_, _ = f.engine.Register(context.Background(), f.event.ID, "user@gmail.com")

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, conflictBefore+1, testutil.ToFloat64(conflict))
}
