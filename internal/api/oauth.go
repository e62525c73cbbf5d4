package api

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// The handshake below exists only to satisfy clients that require a
// standards-shaped OAuth flow before they will send a bearer token. It
// is stateless and always succeeds: every registration gets the same
// client id, every authorization the same code, every code exchange the
// same token. It is not a security boundary; the bearer gate is the
// only access control.

// authorizationCode is the constant code issued to every consenting
// client. The token endpoint accepts any value, so it is never checked.
const authorizationCode = "fake_auth_code_always_same"

// tokenTTLSeconds is the advertised token lifetime (10 years).
const tokenTTLSeconds = 315360000

// OAuthConfig identifies the server in discovery documents and fixes
// the issued credential.
type OAuthConfig struct {
	// Issuer is the public base URL, e.g. "https://notes.example.com".
	Issuer string
	// ClientID is returned from every registration.
	ClientID string
	// Token is the one access token every exchange issues.
	Token string
}

// NewOAuthHandler returns the unauthenticated handshake routes:
// metadata discovery, client registration, authorization and token
// exchange.
func NewOAuthHandler(cfg OAuthConfig) http.Handler {
	r := chi.NewRouter()
	mountOAuthRoutes(r, cfg)
	return r
}

func mountOAuthRoutes(r chi.Router, cfg OAuthConfig) {
	r.Group(func(g chi.Router) {
		// Browser-based clients hit these endpoints cross-origin during
		// the redirect dance.
		g.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}))

		g.Get("/.well-known/oauth-authorization-server", handleAuthServerMetadata(cfg))
		g.Get("/.well-known/oauth-protected-resource", handleResourceMetadata(cfg))
		g.Post("/register", handleRegister(cfg))
		g.Get("/authorize", handleAuthorize(cfg))
		g.Post("/authorize/callback", handleAuthorizeCallback)
		g.Post("/token", handleTokenExchange(cfg))
	})
}

// handleAuthServerMetadata serves the RFC 8414 authorization server
// metadata document.
func handleAuthServerMetadata(cfg OAuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"issuer":                                cfg.Issuer,
			"authorization_endpoint":                cfg.Issuer + "/authorize",
			"token_endpoint":                        cfg.Issuer + "/token",
			"registration_endpoint":                 cfg.Issuer + "/register",
			"response_types_supported":              []string{"code"},
			"grant_types_supported":                 []string{"authorization_code"},
			"token_endpoint_auth_methods_supported": []string{"none"},
			"code_challenge_methods_supported":      []string{"S256"},
		})
	}
}

// handleResourceMetadata serves the RFC 9728 protected resource
// metadata document.
func handleResourceMetadata(cfg OAuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"resource":              cfg.Issuer,
			"authorization_servers": []string{cfg.Issuer},
		})
	}
}

type registerRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
}

// handleRegister implements RFC 7591 dynamic registration. It accepts
// any payload, keeps nothing, and hands back the fixed client id.
func handleRegister(cfg OAuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		slog.Info("client registration", "client_name", req.ClientName)

		redirectURIs := req.RedirectURIs
		if redirectURIs == nil {
			redirectURIs = []string{}
		}
		writeJSON(w, map[string]any{
			"client_id":                  cfg.ClientID,
			"client_secret":              nil,
			"redirect_uris":              redirectURIs,
			"token_endpoint_auth_method": "none",
		})
	}
}

var consentTemplate = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head><title>Neron MCP - Authorize</title></head>
<body style="font-family: sans-serif; max-width: 400px; margin: 50px auto;">
    <h1>Neron MCP</h1>
    <h2>Authorize Access</h2>
    <p><strong>Client:</strong> {{.ClientID}}</p>
    <p>This will grant access to your private notes.</p>
    <form method="POST" action="/authorize/callback">
        <input type="hidden" name="state_params" value="{{.StateParams}}">
        <button type="submit" style="padding: 10px 20px; font-size: 16px;">
            Authorize
        </button>
    </form>
</body>
</html>
`))

// handleAuthorize renders the consent page. The inbound query
// parameters are round-tripped opaquely through a hidden field so the
// callback can reconstruct them without server-side session state.
func handleAuthorize(cfg OAuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		slog.Info("authorization request", "client_id", params.Get("client_id"))

		clientID := params.Get("client_id")
		if clientID == "" {
			clientID = "Unknown"
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := consentTemplate.Execute(w, struct {
			ClientID    string
			StateParams string
		}{
			ClientID:    clientID,
			StateParams: params.Encode(),
		})
		if err != nil {
			slog.Error("rendering consent page", "error", err)
		}
	}
}

// handleAuthorizeCallback consumes the consent form and redirects back
// to the client with the constant authorization code. 303 converts the
// POST into a GET at the redirect target.
func handleAuthorizeCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid form body: %v", err)
		return
	}

	params, err := url.ParseQuery(r.PostFormValue("state_params"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid state_params: %v", err)
		return
	}

	redirectURI := params.Get("redirect_uri")
	if redirectURI == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "missing redirect_uri")
		return
	}

	q := url.Values{}
	q.Set("code", authorizationCode)
	q.Set("state", params.Get("state"))

	slog.Info("authorization granted", "redirect_uri", redirectURI)
	http.Redirect(w, r, redirectURI+"?"+q.Encode(), http.StatusSeeOther)
}

// handleTokenExchange issues the fixed token for any code value. Every
// issued code is identical, so there is nothing to validate.
func handleTokenExchange(cfg OAuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid form body: %v", err)
			return
		}
		slog.Info("token exchange", "code", r.PostFormValue("code"))

		writeJSON(w, map[string]any{
			"access_token": cfg.Token,
			"token_type":   "Bearer",
			"expires_in":   tokenTTLSeconds,
			"scope":        "user",
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}
