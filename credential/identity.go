package credential

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// UserInfo is the parsed identity carried by a cache entry.
type UserInfo struct {
	UserID      string
	DisplayName string
	TenantID    string
}

// ParseIdentityToken extracts a user identity from an encoded identity
// token. The token's signature is not verified here: the caller obtained it
// from the token endpoint and the cache only needs the identity claims to
// key entries. The user ID prefers a human-routable name (UPN, then email)
// and falls back to the stable subject identifiers.
func ParseIdentityToken(raw string) (*UserInfo, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidIdentityToken)
	}

	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims shape", ErrInvalidIdentityToken)
	}

	info := &UserInfo{
		UserID:      firstClaim(claims, "upn", "preferred_username", "email", "oid", "sub"),
		DisplayName: firstClaim(claims, "name"),
		TenantID:    firstClaim(claims, "tid"),
	}
	if info.UserID == "" {
		return nil, fmt.Errorf("%w: no user identifier claim", ErrInvalidIdentityToken)
	}

	return info, nil
}

func firstClaim(claims jwt.MapClaims, names ...string) string {
	for _, name := range names {
		if v, ok := claims[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
