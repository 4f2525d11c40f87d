package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/splitbill/pkg/slogx"
)

// TokenVerifier checks an access token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserCheck decides whether a verified subject may still act. It runs on
// every request. An error means the decision could not be made.
type UserCheck func(ctx context.Context, userID string) (bool, error)

// AuthnMiddleware requires a valid bearer access token whose subject passes
// check. Anything else is answered with 401 and an RFC 6750 challenge.
func AuthnMiddleware(v TokenVerifier, check UserCheck) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			userID, err := v.Verify(raw)
			if err != nil {
				log.Info("access token rejected", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			if check != nil {
				allowed, err := check(ctx, userID)
				if err != nil {
					log.Error("user check failed", "user_id", userID, "err", err)
					WriteJSON(w, http.StatusInternalServerError, map[string]string{
						"error":             "server_error",
						"error_description": "internal server error",
					})
					return
				}
				if !allowed {
					log.Info("access token subject rejected", "user_id", userID)
					writeBearerError(w, "user is not permitted")
					return
				}
			}

			ctx = WithUserID(ctx, userID)
			ctx = slogx.With(ctx, "user_id", userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
