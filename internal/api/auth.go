package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// BearerAuth guards a handler with the one fixed bearer credential.
// Rejected requests get a 401 whose WWW-Authenticate challenge points
// clients at the resource metadata discovery document, and never reach
// the wrapped handler.
func BearerAuth(token, resourceMetadataURL string) func(http.Handler) http.Handler {
	challenge := fmt.Sprintf(`Bearer realm="mcp", resource_metadata_url="%s"`, resourceMetadataURL)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				slog.Warn("invalid bearer token", "remote", r.RemoteAddr)
				w.Header().Set("WWW-Authenticate", challenge)
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
