package authsdk

// ============================================================================
// Wire Types
// ============================================================================

// ErrorResponse is the body of every error the auth service returns.
type ErrorResponse struct {
	// Error is the machine-readable code (e.g. "invalid_token", "login_rejected")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// TokenPair is returned by POST /login and POST /refresh.
type TokenPair struct {
	// AccessToken is a short-lived HS256 JWT sent as a bearer token
	AccessToken string `json:"accessToken"`

	// RefreshToken is opaque; present it once to POST /refresh
	RefreshToken string `json:"refreshToken"`
}

// UserResponse describes the authenticated user (GET /v1/me).
type UserResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz. Only /readyz fills
// Checks.
type HealthResponse struct {
	// Status is "ok" or "degraded"
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks is the status of each dependency, "ok" or "error: ...".
type HealthChecks struct {
	Database         string `json:"database"`
	Signer           string `json:"signer"`
	IdentityProvider string `json:"identityProvider"`
}
