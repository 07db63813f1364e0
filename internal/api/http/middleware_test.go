package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "given", seen)
}

func TestCorrelationIDFallsBackToRequestID(t *testing.T) {
	var requestID, correlationID string
	h := ChainMiddleware(RequestIDMiddleware, CorrelationIDMiddleware)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID = GetRequestID(r.Context())
			correlationID = GetCorrelationID(r.Context())
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, requestID, correlationID)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := DefaultMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNEXPECTED")
}

func TestStaffOnly(t *testing.T) {
	h := StaffOnly([]string{"", "alpha", "beta"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer beta", http.StatusNoContent},
		{"staff header", "X-Staff-Token", "alpha", http.StatusNoContent},
		{"wrong token", "X-Staff-Token", "gamma", http.StatusUnauthorized},
		{"basic scheme", "Authorization", "Basic alpha", http.StatusUnauthorized},
		{"empty bearer", "Authorization", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
