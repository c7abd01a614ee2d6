package services

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Session tokens are signed HS256 JWTs carrying the user id. They are not
// stored server-side: possession of an unexpired, correctly signed token is
// the only authorization proof, and logout does not revoke issued tokens.

const defaultTokenTTL = 7 * 24 * time.Hour

var ErrInvalidToken = errors.New("invalid or expired token")

type TokenClaims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenTTL returns the session lifetime, overridable via JWT_EXPIRES_IN
// (a Go duration string, e.g. "168h").
func TokenTTL() time.Duration {
	if v := os.Getenv("JWT_EXPIRES_IN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultTokenTTL
}

func IssueToken(userID int) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL())),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// VerifyToken checks the signature and expiry and returns the user id the
// token was issued for.
func VerifyToken(tokenStr string) (int, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &TokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return jwtSecret(), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return 0, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

func jwtSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}
