package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
)

func okProbe(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithIdentity(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name      string
		userID    string
		role      string
		wantCode  int
		wantAdmin bool
	}{
		{"no_header", "", "", http.StatusUnauthorized, false},
		{"garbage_user_id", "not-a-uuid", "", http.StatusUnauthorized, false},
		{"plain_client", userID.String(), "", http.StatusOK, false},
		{"client_role", userID.String(), "client", http.StatusOK, false},
		{"admin_role", userID.String(), "admin", http.StatusOK, true},
		{"manager_role", userID.String(), "manager", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser uuid.UUID
			var gotAdmin bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = userIDFrom(r)
				gotAdmin = isAdmin(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/orders", nil)
			if tt.userID != "" {
				req.Header.Set("X-User-ID", tt.userID)
			}
			if tt.role != "" {
				req.Header.Set("X-User-Role", tt.role)
			}
			rec := httptest.NewRecorder()
			WithIdentity(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, userID, gotUser)
				assert.Equal(t, tt.wantAdmin, gotAdmin)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())

	t.Run("client_forbidden", func(t *testing.T) {
		hit := false
		req := httptest.NewRequest("GET", "/admin/orders", nil)
		req.Header.Set("X-User-ID", userID.String())
		rec := httptest.NewRecorder()
		WithIdentity(RequireAdmin(okProbe(&hit))).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, hit)
	})

	t.Run("manager_allowed", func(t *testing.T) {
		hit := false
		req := httptest.NewRequest("GET", "/admin/orders", nil)
		req.Header.Set("X-User-ID", userID.String())
		req.Header.Set("X-User-Role", "manager")
		rec := httptest.NewRecorder()
		WithIdentity(RequireAdmin(okProbe(&hit))).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, hit)
	})
}

func TestRequireCronSecret(t *testing.T) {
	guard := RequireCronSecret("s3cret")

	tests := []struct {
		name     string
		auth     string
		wantCode int
	}{
		{"no_header", "", http.StatusUnauthorized},
		{"wrong_scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong_secret", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit := false
			req := httptest.NewRequest("POST", "/cron/auto-cancel", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			guard(okProbe(&hit)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCode == http.StatusOK, hit)
		})
	}
}
