package authentication

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoUserID is returned when a token carries no usable user id claim.
var ErrNoUserID = errors.New("token has no user id claim")

// userIDClaims are checked in order.
var userIDClaims = []string{"userId", "user_id", "sub"}

// NewCredentials builds credentials from an access token issued by the
// library backend. The signature is not checked here; the backend verifies
// it on every request.
func NewCredentials(accessToken, refreshToken string) (*StoredCredentials, error) {
	claims, err := parseClaims(accessToken)
	if err != nil {
		return nil, err
	}

	userID, err := userIDFrom(claims)
	if err != nil {
		return nil, err
	}

	creds := &StoredCredentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       userID,
	}
	for _, key := range []string{"username", "email"} {
		if v, ok := claims[key].(string); ok && v != "" {
			creds.Username = v
			break
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		creds.ExpiresAt = exp.Unix()
	}
	return creds, nil
}

// UserIDFromToken extracts the numeric user id of an access token.
func UserIDFromToken(accessToken string) (int64, error) {
	claims, err := parseClaims(accessToken)
	if err != nil {
		return 0, err
	}
	return userIDFrom(claims)
}

// Expired reports whether the credentials carry an expiry in the past.
func (c *StoredCredentials) Expired(now time.Time) bool {
	return c.ExpiresAt > 0 && now.Unix() >= c.ExpiresAt
}

func parseClaims(accessToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}

func userIDFrom(claims jwt.MapClaims) (int64, error) {
	for _, key := range userIDClaims {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 && v == float64(int64(v)) {
				return int64(v), nil
			}
		case json.Number:
			if id, err := v.Int64(); err == nil && id > 0 {
				return id, nil
			}
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
				return id, nil
			}
		}
	}
	return 0, ErrNoUserID
}
