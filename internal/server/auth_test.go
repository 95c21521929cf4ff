package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/ednevnik-kb/internal/logging"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		apiKey    string
		header    string
		want      int
		challenge bool
	}{
		{"disabled without key", "", "", http.StatusOK, false},
		{"disabled ignores header", "", "Bearer anything", http.StatusOK, false},
		{"missing header", "secret", "", http.StatusUnauthorized, true},
		{"wrong token", "secret", "Bearer wrong-token", http.StatusUnauthorized, true},
		{"token prefix only", "secret", "Bearer secre", http.StatusUnauthorized, true},
		{"correct token", "secret", "Bearer secret", http.StatusOK, false},
		{"lowercase scheme", "secret", "bearer secret", http.StatusOK, false},
		{"basic auth rejected", "secret", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := authMiddleware(tc.apiKey, okHandler)
			req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
			if got := w.Header().Get("WWW-Authenticate") != ""; got != tc.challenge {
				t.Errorf("WWW-Authenticate present = %v, want %v", got, tc.challenge)
			}
		})
	}
}

// TestAuthMiddleware_NeverLogsToken verifies that a rejected token does not
// end up in the request log.
func TestAuthMiddleware_NeverLogsToken(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := authMiddleware("secret", okHandler)
	req := httptest.NewRequest(http.MethodPost, "/api/filter", nil)
	req.Header.Set("Authorization", "Bearer leaked-guess-123")
	req = req.WithContext(logging.WithLogger(req.Context(), log))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Contains(buf.String(), "leaked-guess-123") {
		t.Errorf("token written to log: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "auth: invalid token") {
		t.Errorf("expected rejection to be logged, got %s", buf.String())
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer mytoken", "mytoken"},
		{"bearer mytoken", "mytoken"},
		{"BEARER mytoken", "mytoken"},
		{"Bearer  spaced ", "spaced"},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
		{"Bearer", ""},
		{"token only", ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("header=%q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}
