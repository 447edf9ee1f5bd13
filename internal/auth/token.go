package auth

import (
	"time"

	apperrors "fleetbook/internal/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed session token payload: who the caller is and what
// role they hold. Expiry rides in the registered claims.
type Claims struct {
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SignToken mints an HS256 session token bound to the given user and role.
func SignToken(secret []byte, userID int, role string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates signature and expiry and returns the claims.
// Any malformed, forged or expired token surfaces as Unauthenticated.
func ParseToken(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.New(apperrors.KindUnauthenticated, "unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "invalid or expired token")
	}
	return claims, nil
}
