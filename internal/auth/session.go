package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Subject distinguishes member sessions from operator sessions so one can
// never be presented as the other.
type Subject string

const (
	SubjectUser     Subject = "user"
	SubjectOperator Subject = "operator"
)

type SessionClaims struct {
	Subject   Subject
	ID        int64
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionService issues and verifies PASETO v4.local session tokens.
type SessionService struct {
	key paseto.V4SymmetricKey
	ttl time.Duration
	now func() time.Time
}

func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	key, err := paseto.V4SymmetricKeyFromBytes(deriveKey(secret, "session"))
	if err != nil {
		return nil, fmt.Errorf("creating session key: %w", err)
	}
	return &SessionService{key: key, ttl: ttl, now: time.Now}, nil
}

func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

func (s *SessionService) Issue(subject Subject, id int64) (string, time.Time) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expiresAt)
	token.SetSubject(strconv.FormatInt(id, 10))
	token.SetJti(uuid.NewString())
	token.SetString("kind", string(subject))

	return token.V4Encrypt(s.key, nil), expiresAt
}

func (s *SessionService) Verify(tokenStr string, subject Subject) (*SessionClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	token, err := parser.ParseV4Local(s.key, tokenStr, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(expiresAt) {
		return nil, ErrExpiredToken
	}

	kind, err := token.GetString("kind")
	if err != nil || Subject(kind) != subject {
		return nil, ErrInvalidToken
	}

	sub, err := token.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	jti, _ := token.GetJti()
	issuedAt, _ := token.GetIssuedAt()

	return &SessionClaims{
		Subject:   subject,
		ID:        id,
		SessionID: jti,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
