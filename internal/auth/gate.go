package auth

import "context"

// PermissionSource resolves the permission a user holds over a file,
// independent of how that grant was established. A host can substitute a
// database- or directory-backed source without touching the Access Gate.
type PermissionSource interface {
	Lookup(ctx context.Context, userID, fileID string) (Permission, error)
}

// Gate is the access gate: it validates a parsed request's access token
// and file id and decides whether the request may proceed.
type Gate struct {
	Tokens *TokenValidator
	// Permissions resolves the permission a user holds over a file. When
	// nil, the gate trusts the permission already bound into the token
	// itself (see Claims) rather than calling out anywhere — the
	// signature check alone is both authentication and authorization.
	Permissions PermissionSource
}

// NewGate builds a Gate around a TokenValidator and an optional
// PermissionSource.
func NewGate(tokens *TokenValidator, permissions PermissionSource) *Gate {
	return &Gate{Tokens: tokens, Permissions: permissions}
}

// Validate verifies the token's binding to fileID, extracts the user,
// resolves the permission, and compares it against whether the operation
// requires write access.
func (g *Gate) Validate(ctx context.Context, token, fileID string, writeRequired bool) (userID string, ok bool) {
	claims, valid := g.Tokens.Validate(token, fileID)
	if !valid {
		return "", false
	}

	perm := claims.Permission
	if g.Permissions != nil {
		looked, err := g.Permissions.Lookup(ctx, claims.UserID, fileID)
		if err != nil {
			return "", false
		}
		perm = looked
	}

	switch perm {
	case PermissionNone:
		return "", false
	case PermissionRead:
		if writeRequired {
			return "", false
		}
		return claims.UserID, true
	case PermissionWrite:
		return claims.UserID, true
	default:
		return "", false
	}
}
