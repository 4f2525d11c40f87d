package service

import "errors"

var (
	// ErrLoginRejected covers every way a login can fail: bad or expired
	// assertion, wrong issuer or audience, deactivated account.
	ErrLoginRejected = errors.New("login_rejected")

	// ErrInvalidToken is returned for malformed, unknown, reused or expired
	// refresh tokens and for access tokens that fail verification.
	ErrInvalidToken = errors.New("invalid_token")

	ErrUserNotFound    = errors.New("user_not_found")
	ErrUnauthenticated = errors.New("unauthenticated")
)
