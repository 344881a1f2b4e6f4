package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"marginalia/internal/auth"
	"marginalia/internal/httputil"
)

// AuthMiddleware authenticates requests with a Supabase bearer token and
// stores the user ID in the request context.
//
// With a nil verifier (no JWKS configured) every request runs as devUserID.
// The health check is always public.
func AuthMiddleware(verifier auth.JWTVerifier, devUserID string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if verifier == nil {
				if devUserID == "" {
					httputil.RespondError(w, http.StatusUnauthorized, "authentication is not configured")
					return
				}
				next.ServeHTTP(w, httputil.WithUserID(r, devUserID))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.GetUserID()))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
