package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const MaxResetAttempts = 5

type ResetCodeService struct {
	ttl time.Duration
}

func NewResetCodeService(ttl time.Duration) *ResetCodeService {
	return &ResetCodeService{ttl: ttl}
}

// GenerateCode creates a 6-digit zero-padded numeric code using crypto/rand
func (s *ResetCodeService) GenerateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ExpiresAt returns when a newly created code should expire
func (s *ResetCodeService) ExpiresAt(now time.Time) time.Time {
	return now.Add(s.ttl)
}

func (s *ResetCodeService) TTL() time.Duration {
	return s.ttl
}

// HashCode binds a code to its email so stored hashes cannot be replayed
// against another address.
func HashCode(email, code string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email)) + ":" + strings.TrimSpace(code)))
	return hex.EncodeToString(h[:])
}

func CodeMatches(storedHash, email, code string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(HashCode(email, code))) == 1
}
