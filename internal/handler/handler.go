package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"event-management-api/internal/auth"
	"event-management-api/internal/middleware"
	"event-management-api/internal/model"
	"event-management-api/internal/registration"
)

type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, search string) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, id, organizerID string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
}

type TokenStore interface {
	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (string, error)
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID, userID, newHash string, newExpiry time.Time) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// Store is everything the handlers need from persistence; *store.Store satisfies it.
type Store interface {
	EventStore
	UserStore
	TokenStore
	AddAttendee(ctx context.Context, eventID, userID string, then func(pgx.Tx) error) (int, error)
	RemoveAttendee(ctx context.Context, eventID, userID string) (int, error)
}

type Registrar interface {
	Register(ctx context.Context, eventID, email string) (registration.Result, error)
	Unregister(ctx context.Context, eventID, email string) (registration.Result, error)
}

type Handler struct {
	events    EventStore
	users     UserStore
	tokens    TokenStore
	registrar Registrar
	issuer    *auth.Issuer
	validate  *validator.Validate
	env       string
	now       func() time.Time
}

func New(st Store, registrar Registrar, issuer *auth.Issuer, env string) *Handler {
	return &Handler{
		events:    st,
		users:     st,
		tokens:    st,
		registrar: registrar,
		issuer:    issuer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		env:       env,
		now:       time.Now,
	}
}

// Routes registers the API on mux. Every path is served with and without its
// trailing slash. rl may be nil to disable rate limiting.
func (h *Handler) Routes(mux *http.ServeMux, rl *middleware.RateLimiter) {
	authed := middleware.Authenticate(h.issuer, h.writeError)
	limited := func(next http.Handler) http.Handler { return next }
	if rl != nil {
		limited = middleware.RateLimit(rl, func(w http.ResponseWriter, r *http.Request) {
			h.writeError(w, r, errTooManyRequests)
		})
	}

	route(mux, "GET /events/", authed(http.HandlerFunc(h.ListEvents)))
	route(mux, "POST /events/", authed(http.HandlerFunc(h.CreateEvent)))
	route(mux, "GET /events/{id}/", authed(http.HandlerFunc(h.GetEvent)))
	route(mux, "PUT /events/{id}/", authed(http.HandlerFunc(h.UpdateEvent)))
	route(mux, "DELETE /events/{id}/", authed(http.HandlerFunc(h.DeleteEvent)))
	route(mux, "POST /events/{id}/register/", authed(http.HandlerFunc(h.RegisterAttendee)))
	route(mux, "POST /events/{id}/unregister/", authed(http.HandlerFunc(h.UnregisterAttendee)))

	route(mux, "POST /users/", limited(http.HandlerFunc(h.Signup)))
	route(mux, "POST /api/token/", limited(http.HandlerFunc(h.ObtainToken)))
	route(mux, "POST /api/token/refresh/", limited(http.HandlerFunc(h.RefreshToken)))
}

func route(mux *http.ServeMux, pattern string, next http.Handler) {
	mux.Handle(pattern+"{$}", next)
	mux.Handle(strings.TrimSuffix(pattern, "/"), next)
}
