package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/splitbill/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeInvalidToken      = "invalid_token"
	ErrorCodeLoginRejected     = "login_rejected"
	ErrorCodeServerError       = "server_error"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
)

// ============================================================================
// OAuth2Error
// ============================================================================

// OAuth2Error is an error response in the RFC 6749 shape. The server writes
// it with WriteError and the client parses non-2xx responses back into it.
type OAuth2Error struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is reports a 401 as ErrUnauthorized, so protected calls can return the
// parsed response directly to Manager.Call.
func (e *OAuth2Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// WriteError writes e to w. Error responses are never cached.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	if e.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="`+e.Code+`"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

// Responses the service writes.
var (
	InvalidRequestError = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	InvalidTokenError = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is missing, invalid, expired or revoked",
	}

	LoginRejectedError = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeLoginRejected,
		Description: "the identity assertion was not accepted",
	}

	ServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// ============================================================================
// Client Errors
// ============================================================================

var (
	// ErrSessionMissing means there is no stored session; the user must log in.
	ErrSessionMissing = errors.New("authsdk: no session")

	// ErrSessionRejected means the server refused the session after the one
	// permitted refresh. The session has been cleared; sign in again.
	ErrSessionRejected = errors.New("authsdk: session rejected")

	// ErrLoginRejected means the server refused the identity assertion.
	ErrLoginRejected = errors.New("authsdk: login rejected")

	// ErrUnauthorized is what a protected call returns (or wraps) when the
	// server rejected its access token.
	ErrUnauthorized = errors.New("authsdk: unauthorized")

	// ErrNetwork wraps transport failures and timeouts. The session is kept;
	// retrying later is safe.
	ErrNetwork = errors.New("authsdk: network error")
)

// isUnauthorized reports whether err is a 401 from the service.
func isUnauthorized(err error) bool {
	var apiErr *OAuth2Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// parseErrorResponse turns a non-2xx response into an *OAuth2Error. It
// returns nil for 2xx.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &OAuth2Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
