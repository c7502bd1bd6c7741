package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"event-management-api/internal/auth"
	"event-management-api/internal/registration"
	"event-management-api/internal/store"
)

const problemContentType = "application/problem+json"

var (
	errTooManyRequests = errors.New("too many requests")
	errEmailTaken      = errors.New("user with this email already exists")
	errBadCredentials  = errors.New("no active account found with the given credentials")
	errBadRefresh      = errors.New("token is invalid or expired")
)

// ValidationError carries per-field messages for a 400 response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// classify maps a domain error onto an HTTP status and problem type. Client
// errors carry their own message as detail.
func classify(err error) (status int, typ string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, registration.ErrMissingField),
		errors.Is(err, registration.ErrUnknownUser),
		errors.Is(err, registration.ErrNotRegistered):
		return http.StatusBadRequest, "validation-error"
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, errBadCredentials),
		errors.Is(err, errBadRefresh):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, registration.ErrEventNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not-found"
	case errors.Is(err, registration.ErrAlreadyRegistered),
		errors.Is(err, errEmailTaken):
		return http.StatusConflict, "conflict"
	case errors.Is(err, errTooManyRequests):
		return http.StatusTooManyRequests, "rate-limited"
	}
	return http.StatusInternalServerError, "internal-error"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, typ := classify(err)
	p := ProblemDetails{
		Type:     "/problems/" + typ,
		Title:    http.StatusText(status),
		Status:   status,
		Instance: r.URL.Path,
	}

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		p.Detail = "validation failed"
		p.Errors = verr.Fields
	case status < 500:
		p.Detail = err.Error()
	case h.env == "development" || h.env == "test":
		p.Detail = err.Error()
	}

	logger := zerolog.Ctx(r.Context())
	if status >= 500 {
		logger.Error().Err(err).Int("status", status).Str("path", r.URL.Path).Str("method", r.Method).Msg(p.Title)
	} else {
		logger.Warn().Err(err).Int("status", status).Str("path", r.URL.Path).Str("method", r.Method).Msg(p.Title)
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	payload, mErr := json.Marshal(p)
	if mErr != nil {
		payload = []byte(fmt.Sprintf(`{"type":"about:blank","title":%q,"status":500}`, http.StatusText(http.StatusInternalServerError)))
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode fills dst from a JSON body or, for form posts, from the form fields.
// An empty body leaves dst untouched so required-field checks report it.
func decode(r *http.Request, dst any) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return fieldError("body", "malformed form body")
		}
		fields := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		b, _ := json.Marshal(fields)
		return json.Unmarshal(b, dst)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fieldError("body", "malformed JSON body")
	}
	return nil
}

// check runs the struct tag rules and turns failures into a ValidationError.
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	out := &ValidationError{Fields: map[string]string{}}
	for _, fe := range ves {
		out.Fields[jsonName(fe.Field())] = ruleMessage(fe)
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "min":
		return fmt.Sprintf("ensure this field has at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
	}
	return "invalid value"
}

func jsonName(field string) string {
	return strings.ToLower(field)
}
