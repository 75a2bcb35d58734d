package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxIsAdmin
)

// Identity headers are set by the API gateway after token validation; token
// issuance itself lives outside this service.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// WithIdentity extracts the authenticated user from gateway headers.
// Requests without a valid user id are rejected.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.FromString(r.Header.Get(headerUserID))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		role := r.Header.Get(headerUserRole)
		ctx = context.WithValue(ctx, ctxIsAdmin, role == "admin" || role == "manager")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates the back-office routes.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if admin, _ := r.Context().Value(ctxIsAdmin).(bool); !admin {
			respondError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCronSecret guards the manual janitor triggers with a shared bearer
// secret.
func RequireCronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userIDFrom(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(ctxUserID).(uuid.UUID)
	return id
}

func isAdmin(r *http.Request) bool {
	admin, _ := r.Context().Value(ctxIsAdmin).(bool)
	return admin
}
