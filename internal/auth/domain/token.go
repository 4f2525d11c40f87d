package domain

import "time"

// TokenPair is what login and refresh hand back to the client: a short-lived
// access token (JWT) and an opaque refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken is the stored refresh record. There is at most one per user;
// only the digest of the opaque token is kept.
type RefreshToken struct {
	UserID    string
	Digest    string // "digest$" + base64url(sha256(secret))
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
