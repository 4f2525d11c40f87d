package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/splitbill/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]string

func (f fakeVerifier) Verify(token string) (string, error) {
	if sub, ok := f[token]; ok {
		return sub, nil
	}
	return "", errors.New("bad token")
}

func TestAuthnMiddleware(t *testing.T) {
	t.Parallel()

	verifier := fakeVerifier{"good": "user-1", "inactive": "user-2", "unlucky": "user-3"}
	check := func(_ context.Context, userID string) (bool, error) {
		switch userID {
		case "user-2":
			return false, nil
		case "user-3":
			return false, errors.New("database down")
		}
		return true, nil
	}

	var seen string
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = httpx.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}), httpx.AuthnMiddleware(verifier, check))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer good", http.StatusNoContent},
		{"lower case scheme", "bearer good", http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"subject rejected", "Bearer inactive", http.StatusUnauthorized},
		{"check failed", "Bearer unlucky", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code)
			switch tt.want {
			case http.StatusUnauthorized:
				require.Contains(t, rec.Header().Get("WWW-Authenticate"), `Bearer error="invalid_token"`)
				require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
				require.Empty(t, seen)
			case http.StatusNoContent:
				require.Equal(t, "user-1", seen)
			default:
				require.Empty(t, rec.Header().Get("WWW-Authenticate"))
				require.Empty(t, seen)
			}
		})
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}
