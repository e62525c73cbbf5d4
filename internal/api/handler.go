package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HandlerDeps holds everything the HTTP surface needs: the handshake
// identity, the fixed credential, and the MCP transport to gate.
type HandlerDeps struct {
	OAuth OAuthConfig
	// Token is the fixed bearer credential checked on every MCP request.
	Token string
	// ResourceMetadataURL is advertised in the WWW-Authenticate
	// challenge on rejected requests.
	ResourceMetadataURL string
	// MCP handles the agent protocol traffic at the root path.
	MCP http.Handler
}

// NewHandler composes the full HTTP surface: an unauthenticated health
// probe, the unauthenticated OAuth handshake routes, and the
// bearer-gated MCP endpoint at the root.
func NewHandler(deps HandlerDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	mountOAuthRoutes(r, deps.OAuth)
	r.Handle("/", BearerAuth(deps.Token, deps.ResourceMetadataURL)(deps.MCP))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
