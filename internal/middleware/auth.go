package middleware

import (
	"context"
	"net/http"
	"strings"

	"event-management-api/internal/auth"
)

type ctxKey string

const UserIDKey ctxKey = "uid"

// Authenticate resolves the bearer token into a user id on the context. A
// request without a token passes through anonymous and the guard decides;
// a token that is present but invalid is rejected here with 401.
func Authenticate(iss *auth.Issuer, reject func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// token from Authorization: Bearer <jwt>
			h := r.Header.Get("Authorization")
			if h == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || raw == "" {
				reject(w, r, auth.ErrUnauthorized)
				return
			}

			claims, err := iss.Parse(raw)
			if err != nil {
				reject(w, r, auth.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, UserIDKey, uid)
}

// UserID returns "" for anonymous requests.
func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}
