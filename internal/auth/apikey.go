// Package auth guards the API with service credentials. Resolving end-user
// identity and branch/role claims is the gateway's job; this layer only
// verifies that the calling service holds a known key.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/shiksha-erp/shiksha-erp/internal/platform/httpx"
)

const apiKeyHeader = "X-API-Key"

// Keyring maps key identifiers to bcrypt hashes of their secrets. Secrets
// never touch the process in plain form outside the comparison.
type Keyring map[string]string

// ParseKeyring reads "id:bcrypt-hash" pairs from a comma separated list, the
// shape the API_KEYS environment variable carries.
func ParseKeyring(raw string) Keyring {
	ring := make(Keyring)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, hash, ok := strings.Cut(pair, ":")
		if !ok || id == "" || hash == "" {
			continue
		}
		ring[id] = hash
	}
	return ring
}

// Middleware rejects requests that do not present a valid "id.secret" API
// key. The verified key id is stored in the request context for logging.
func Middleware(logger *slog.Logger, ring Keyring) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID, ok := verify(ring, r.Header.Get(apiKeyHeader))
			if !ok {
				if logger != nil {
					logger.Warn("api key rejected", slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), keyID)))
		})
	}
}

func verify(ring Keyring, raw string) (string, bool) {
	id, secret, ok := strings.Cut(raw, ".")
	if !ok || id == "" || secret == "" {
		return "", false
	}
	hash, ok := ring[id]
	if !ok {
		return "", false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return "", false
	}
	return id, true
}

type callerContextKey struct{}

// ContextWithCaller stores the verified caller key id in context.
func ContextWithCaller(ctx context.Context, keyID string) context.Context {
	return context.WithValue(ctx, callerContextKey{}, keyID)
}

// CallerFromContext extracts the verified caller key id from context.
func CallerFromContext(ctx context.Context) string {
	keyID, _ := ctx.Value(callerContextKey{}).(string)
	return keyID
}
