package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errBadClaim = errors.New("bad claim")

// decodeAccessClaims converts MapClaims into the typed AccessClaims shape.
// JSON numbers arrive as float64; the business snapshot is an optional nested
// object.
func decodeAccessClaims(mc jwt.MapClaims) (AccessClaims, error) {
	userID, err := claimUint64(mc, "sub")
	if err != nil {
		return AccessClaims{}, err
	}
	role, ok := mc["role"].(string)
	if !ok || role == "" {
		return AccessClaims{}, errBadClaim
	}
	iat, err := claimUint64(mc, "iat")
	if err != nil {
		return AccessClaims{}, err
	}

	ac := AccessClaims{
		UserID:   userID,
		Role:     role,
		IssuedAt: time.Unix(int64(iat), 0).UTC(),
	}

	if raw, present := mc["business"]; present && raw != nil {
		obj, ok := raw.(map[string]any)
		if !ok {
			return AccessClaims{}, errBadClaim
		}
		id, ok := asUint64(obj["id"])
		if !ok {
			return AccessClaims{}, errBadClaim
		}
		expStr, ok := obj["license_expires_at"].(string)
		if !ok {
			return AccessClaims{}, errBadClaim
		}
		exp, err := time.Parse(time.RFC3339, expStr)
		if err != nil {
			return AccessClaims{}, errBadClaim
		}
		ac.Business = &BusinessClaims{ID: id, LicenseExpires: exp}
	}
	return ac, nil
}

func claimUint64(mc jwt.MapClaims, key string) (uint64, error) {
	v, ok := asUint64(mc[key])
	if !ok {
		return 0, errBadClaim
	}
	return v, nil
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}
