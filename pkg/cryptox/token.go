package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize256 provides 256 bits of entropy. Refresh secrets use this.
	TokenSize256 = 32
)

// DigestSchemeSHA256 tags refresh token digests computed with SHA-256.
// Stored digests look like "digest$<base64url sha256>".
const DigestSchemeSHA256 = "digest"

// Refresh token wire fields. Encoded with the protobuf wire format so the
// value stays compact and self-describing without a generated schema.
const (
	fieldUserID protowire.Number = 1
	fieldSecret protowire.Number = 2
)

// maxUserIDLen bounds the embedded user id; ours are 26 char ULIDs.
const maxUserIDLen = 128

var ErrInvalidRefreshToken = errors.New("cryptox: invalid refresh token")

// RefreshToken is the decoded form of an opaque refresh credential. The
// UserID is advisory: servers must match the digest stored for that user
// before trusting it.
type RefreshToken struct {
	UserID string
	Secret []byte
}

// RandomBytes returns size bytes from crypto/rand.
func RandomBytes(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cryptox: size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("cryptox: failed to read random bytes: %w", err)
	}
	return buf, nil
}

// GenerateRefreshToken creates a refresh token for userID carrying a fresh
// 256-bit secret.
func GenerateRefreshToken(userID string) (RefreshToken, error) {
	if userID == "" || len(userID) > maxUserIDLen {
		return RefreshToken{}, fmt.Errorf("cryptox: invalid user id length %d", len(userID))
	}

	secret, err := RandomBytes(TokenSize256)
	if err != nil {
		return RefreshToken{}, err
	}

	return RefreshToken{UserID: userID, Secret: secret}, nil
}

// EncodeRefreshToken serializes t into its opaque, URL-safe wire form.
func EncodeRefreshToken(t RefreshToken) string {
	b := make([]byte, 0, 4+len(t.UserID)+len(t.Secret))
	b = protowire.AppendTag(b, fieldUserID, protowire.BytesType)
	b = protowire.AppendString(b, t.UserID)
	b = protowire.AppendTag(b, fieldSecret, protowire.BytesType)
	b = protowire.AppendBytes(b, t.Secret)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeRefreshToken parses the opaque form produced by EncodeRefreshToken.
// Any malformed input yields ErrInvalidRefreshToken.
func DecodeRefreshToken(s string) (RefreshToken, error) {
	raw, err := base64.RawURLEncoding.Strict().DecodeString(s)
	if err != nil || len(raw) == 0 {
		return RefreshToken{}, ErrInvalidRefreshToken
	}

	var (
		t                 RefreshToken
		seenUser, seenSec bool
	)
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 || typ != protowire.BytesType {
			return RefreshToken{}, ErrInvalidRefreshToken
		}
		raw = raw[n:]

		val, m := protowire.ConsumeBytes(raw)
		if m < 0 {
			return RefreshToken{}, ErrInvalidRefreshToken
		}
		raw = raw[m:]

		switch {
		case num == fieldUserID && !seenUser:
			t.UserID = string(val)
			seenUser = true
		case num == fieldSecret && !seenSec:
			t.Secret = append([]byte(nil), val...)
			seenSec = true
		default:
			return RefreshToken{}, ErrInvalidRefreshToken
		}
	}

	if t.UserID == "" || len(t.UserID) > maxUserIDLen || len(t.Secret) != TokenSize256 {
		return RefreshToken{}, ErrInvalidRefreshToken
	}
	return t, nil
}

// DigestRefreshToken returns the tagged one-way digest of the token secret,
// suitable for at-rest storage.
func DigestRefreshToken(t RefreshToken) string {
	sum := sha256.Sum256(t.Secret)
	return DigestSchemeSHA256 + "$" + base64.RawURLEncoding.EncodeToString(sum[:])
}

// DigestScheme returns the scheme tag of a stored digest, or "" if the value
// is not tagged.
func DigestScheme(digest string) string {
	scheme, _, ok := strings.Cut(digest, "$")
	if !ok {
		return ""
	}
	return scheme
}
