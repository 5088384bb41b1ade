// Package auth implements the access gate: access-token minting and
// validation, and the pluggable permission lookup the gate consults before
// admitting a WOPI operation.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Permission is the three-valued access level the Access Gate checks
// against an operation's write requirement.
type Permission string

const (
	PermissionNone  Permission = "none"
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// DefaultTTL is the token lifetime recommended by the WOPI protocol.
const DefaultTTL = 10 * time.Hour

// TokenValidator mints and validates access tokens that bind a user,
// a file, and a permission level under an HMAC signature. Binding the
// permission into the token means a Gate with no PermissionSource (nil
// Permissions) needs no database lookup: the signature check alone proves
// both identity and grant.
type TokenValidator struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenValidator creates a TokenValidator with the given signing secret
// and token lifetime. A zero ttl defaults to DefaultTTL.
func NewTokenValidator(secret string, ttl time.Duration) *TokenValidator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenValidator{secret: []byte(secret), ttl: ttl}
}

// GenerateToken mints a token binding userID to fileID with the given
// permission, timestamped now.
func (tv *TokenValidator) GenerateToken(userID, fileID string, perm Permission) string {
	return tv.generateTokenAt(userID, fileID, perm, time.Now().Unix())
}

func (tv *TokenValidator) generateTokenAt(userID, fileID string, perm Permission, timestamp int64) string {
	sig := tv.sign(userID, fileID, perm, timestamp)
	raw := fmt.Sprintf("%s:%s:%s:%d", sig, userID, perm, timestamp)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func (tv *TokenValidator) sign(userID, fileID string, perm Permission, timestamp int64) string {
	payload := fmt.Sprintf("%s:%s:%s:%d", userID, fileID, perm, timestamp)
	mac := hmac.New(sha256.New, tv.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Claims is the decoded, verified content of an access token.
type Claims struct {
	UserID     string
	Permission Permission
}

// Validate verifies token's signature and its binding to the lower-cased
// fileID. fileID must already be normalized by the caller.
func (tv *TokenValidator) Validate(token, fileID string) (Claims, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, false
	}

	parts := strings.SplitN(string(raw), ":", 4)
	if len(parts) != 4 {
		return Claims{}, false
	}
	sig, userID, permStr, tsStr := parts[0], parts[1], parts[2], parts[3]

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return Claims{}, false
	}
	if time.Since(time.Unix(ts, 0)) > tv.ttl {
		return Claims{}, false
	}

	perm := Permission(permStr)
	expected := tv.sign(userID, fileID, perm, ts)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return Claims{}, false
	}

	return Claims{UserID: userID, Permission: perm}, true
}

// TTLDeadline reports the wall-clock expiry of a token minted right now,
// as milliseconds since the epoch (the unit WOPI's access_token_ttl
// convention expects).
func (tv *TokenValidator) TTLDeadline() int64 {
	return time.Now().Add(tv.ttl).UnixMilli()
}
