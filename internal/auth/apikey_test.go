package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testKeyring(t *testing.T, id, secret string) Keyring {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return Keyring{id: string(hash)}
}

func protected(t *testing.T, ring Keyring) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return Middleware(logger, ring)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Caller", CallerFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMiddlewareAcceptsValidKey(t *testing.T) {
	handler := protected(t, testKeyring(t, "dashboard", "s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/students/x/fees/ledger", nil)
	req.Header.Set(apiKeyHeader, "dashboard.s3cret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "dashboard", rr.Header().Get("X-Caller"))
}

func TestMiddlewareRejectsInvalidSecret(t *testing.T) {
	handler := protected(t, testKeyring(t, "dashboard", "s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(apiKeyHeader, "dashboard.wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	handler := protected(t, testKeyring(t, "dashboard", "s3cret"))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareRejectsUnknownKeyID(t *testing.T) {
	handler := protected(t, testKeyring(t, "dashboard", "s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(apiKeyHeader, "reports.s3cret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestParseKeyring(t *testing.T) {
	ring := ParseKeyring("dashboard:$2a$10$abc, reports:$2a$10$def ,,broken")
	require.Len(t, ring, 2)
	require.Equal(t, "$2a$10$abc", ring["dashboard"])
	require.Equal(t, "$2a$10$def", ring["reports"])
}
