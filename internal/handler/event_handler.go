package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"event-management-api/internal/auth"
	"event-management-api/internal/middleware"
	"event-management-api/internal/model"
	"event-management-api/internal/store"
)

type eventRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Location    string `json:"location" validate:"max=200"`
	Date        string `json:"date" validate:"required"`
}

type eventResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Date           time.Time `json:"date"`
	Organizer      string    `json:"organizer"`
	OrganizerEmail string    `json:"organizer_email"`
	AttendeeCount  int       `json:"attendee_count"`
	Attendees      []string  `json:"attendees,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type attendeeRequest struct {
	Email string `json:"email"`
}

func toEventResponse(e *model.Event) eventResponse {
	return eventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Location:       e.Location,
		Date:           e.Date,
		Organizer:      e.OrganizerID,
		OrganizerEmail: e.OrganizerEmail,
		AttendeeCount:  e.AttendeeCount,
		Attendees:      e.AttendeeEmails,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// bind decodes and validates an event payload. The date must parse and must
// not lie in the past.
func (h *Handler) bind(r *http.Request, e *model.Event) error {
	var req eventRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := h.check(req); err != nil {
		return err
	}
	date, ok := parseDate(req.Date)
	if !ok {
		return fieldError("date", "use an RFC 3339 timestamp or YYYY-MM-DD")
	}
	if date.Before(h.now()) {
		return fieldError("date", "event date cannot be in the past")
	}
	e.Title = strings.TrimSpace(req.Title)
	e.Description = req.Description
	e.Location = req.Location
	e.Date = date
	return nil
}

// eventID returns the path id, or false when it cannot name any event.
func eventID(r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if err := auth.Authenticate(auth.OpListEvents, middleware.UserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}

	events, err := h.events.ListEvents(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for i := range events {
		out = append(out, toEventResponse(&events[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserID(r.Context())
	if err := auth.Authenticate(auth.OpCreateEvent, uid); err != nil {
		h.writeError(w, r, err)
		return
	}

	e := &model.Event{ID: uuid.New().String(), OrganizerID: uid}
	if err := h.bind(r, e); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.events.CreateEvent(r.Context(), e); err != nil {
		h.writeError(w, r, err)
		return
	}
	e.AttendeeEmails = []string{}
	writeJSON(w, http.StatusCreated, toEventResponse(e))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	if err := auth.Authenticate(auth.OpGetEvent, middleware.UserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, ok := eventID(r)
	if !ok {
		h.writeError(w, r, store.ErrNotFound)
		return
	}

	e, err := h.events.GetEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(e))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserID(r.Context())
	if err := auth.Authenticate(auth.OpUpdateEvent, uid); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, ok := eventID(r)
	if !ok {
		h.writeError(w, r, store.ErrNotFound)
		return
	}

	e, err := h.events.GetEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := auth.Check(auth.OpUpdateEvent, uid, e.OrganizerID); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.bind(r, e); err != nil {
		h.writeError(w, r, err)
		return
	}

	attendees := e.AttendeeEmails
	if err := h.events.UpdateEvent(r.Context(), e); err != nil {
		h.writeError(w, r, err)
		return
	}
	e.AttendeeEmails = attendees
	writeJSON(w, http.StatusOK, toEventResponse(e))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserID(r.Context())
	if err := auth.Authenticate(auth.OpDeleteEvent, uid); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, ok := eventID(r)
	if !ok {
		h.writeError(w, r, store.ErrNotFound)
		return
	}

	e, err := h.events.GetEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := auth.Check(auth.OpDeleteEvent, uid, e.OrganizerID); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.events.DeleteEvent(r.Context(), id, uid); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RegisterAttendee(w http.ResponseWriter, r *http.Request) {
	if err := auth.Authenticate(auth.OpRegister, middleware.UserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	var req attendeeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.registrar.Register(r.Context(), r.PathValue("id"), req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) UnregisterAttendee(w http.ResponseWriter, r *http.Request) {
	if err := auth.Authenticate(auth.OpUnregister, middleware.UserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	var req attendeeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.registrar.Unregister(r.Context(), r.PathValue("id"), req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
