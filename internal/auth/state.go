package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateTTL = 10 * time.Minute

// StateSigner produces the OAuth state parameter: a short-lived HS256 JWT
// bound to the user who started the flow.
type StateSigner struct {
	secret []byte
}

type stateClaims struct {
	jwt.RegisteredClaims
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: deriveKey(secret, "oauth-state")}
}

func (s *StateSigner) Sign(userID int64) (string, error) {
	now := time.Now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing state: %w", err)
	}
	return signed, nil
}

// Verify checks the state and that it was issued to userID.
func (s *StateSigner) Verify(state string, userID int64) error {
	token, err := jwt.ParseWithClaims(state, &stateClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("parsing state: %w", err)
	}

	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid state claims")
	}
	if claims.Subject != strconv.FormatInt(userID, 10) {
		return fmt.Errorf("state issued to another user")
	}
	return nil
}
