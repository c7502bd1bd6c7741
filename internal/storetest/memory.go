// Package storetest provides an in-memory stand-in for store.Store with the
// same error contract, for handler and engine tests that do not need postgres.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"event-management-api/internal/model"
	"event-management-api/internal/notify"
	"event-management-api/internal/store"
)

type Memory struct {
	mu        sync.Mutex
	users     map[string]*model.User
	events    map[string]*model.Event
	attendees map[string][]string // event id -> user ids in registration order
	tokens    map[string]*model.RefreshToken
}

func NewMemory() *Memory {
	return &Memory{
		users:     map[string]*model.User{},
		events:    map[string]*model.Event{},
		attendees: map[string][]string{},
		tokens:    map[string]*model.RefreshToken{},
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) CreateEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.users[e.OrganizerID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	e.OrganizerEmail = org.Email
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := m.snapshot(e)
	out.AttendeeEmails = []string{}
	for _, uid := range m.attendees[id] {
		out.AttendeeEmails = append(out.AttendeeEmails, m.users[uid].Email)
	}
	return out, nil
}

func (m *Memory) ListEvents(_ context.Context, search string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	terms := strings.Fields(strings.ToLower(search))
	out := []model.Event{}
	for _, e := range m.events {
		if matchesAll(e, terms) {
			out = append(out, *m.snapshot(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// matchesAll mirrors the store search: every term must occur in some field.
func matchesAll(e *model.Event, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(strings.ToLower(e.Title), t) &&
			!strings.Contains(strings.ToLower(e.Description), t) &&
			!strings.Contains(strings.ToLower(e.Location), t) {
			return false
		}
	}
	return true
}

func (m *Memory) UpdateEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.events[e.ID]
	if !ok || cur.OrganizerID != e.OrganizerID {
		return store.ErrNotFound
	}
	cur.Title, cur.Description, cur.Location, cur.Date = e.Title, e.Description, e.Location, e.Date
	cur.UpdatedAt = time.Now()
	*e = *m.snapshot(cur)
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, id, organizerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.events[id]
	if !ok || cur.OrganizerID != organizerID {
		return store.ErrNotFound
	}
	delete(m.events, id)
	delete(m.attendees, id)
	return nil
}

// AddAttendee calls then with a nil transaction; an error from then undoes the insert.
func (m *Memory) AddAttendee(_ context.Context, eventID, userID string, then func(pgx.Tx) error) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return 0, store.ErrNotFound
	}
	for _, uid := range m.attendees[eventID] {
		if uid == userID {
			return 0, store.ErrAlreadyRegistered
		}
	}
	prev := m.attendees[eventID]
	m.attendees[eventID] = append(append([]string{}, prev...), userID)
	if then != nil {
		if err := then(nil); err != nil {
			m.attendees[eventID] = prev
			return 0, err
		}
	}
	return len(m.attendees[eventID]), nil
}

func (m *Memory) RemoveAttendee(_ context.Context, eventID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return 0, store.ErrNotFound
	}
	list := m.attendees[eventID]
	for i, uid := range list {
		if uid == userID {
			m.attendees[eventID] = append(append([]string{}, list[:i]...), list[i+1:]...)
			return len(m.attendees[eventID]), nil
		}
	}
	return 0, store.ErrNotRegistered
}

// AttendeeCount is a test helper with no store counterpart.
func (m *Memory) AttendeeCount(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attendees[eventID])
}

func (m *Memory) CreateRefreshToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.tokens[tokenHash] = &model.RefreshToken{
		ID: id, UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: time.Now(),
	}
	return id, nil
}

func (m *Memory) RefreshTokenByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[tokenHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (m *Memory) RotateRefreshToken(_ context.Context, oldID, userID, newHash string, newExpiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var old *model.RefreshToken
	for _, rt := range m.tokens {
		if rt.ID == oldID && !rt.Revoked {
			old = rt
		}
	}
	if old == nil {
		return store.ErrNotFound
	}
	newID := uuid.New().String()
	m.tokens[newHash] = &model.RefreshToken{
		ID: newID, UserID: userID, TokenHash: newHash, ExpiresAt: newExpiry, CreatedAt: time.Now(),
	}
	old.Revoked = true
	old.ReplacedBy = &newID
	return nil
}

func (m *Memory) RevokeAllRefreshTokens(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.tokens {
		if rt.UserID == userID {
			rt.Revoked = true
		}
	}
	return nil
}

func (m *Memory) snapshot(e *model.Event) *model.Event {
	cp := *e
	cp.AttendeeCount = len(m.attendees[e.ID])
	cp.AttendeeEmails = nil
	return &cp
}

// Outbox records enqueued registration emails in place of the job queue.
type Outbox struct {
	mu   sync.Mutex
	Jobs []notify.RegistrationEmailArgs
	Err  error
}

func (o *Outbox) EnqueueRegistrationEmail(_ context.Context, _ pgx.Tx, args notify.RegistrationEmailArgs) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.Jobs = append(o.Jobs, args)
	return nil
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Jobs)
}
