package auth

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrPasswordMismatch)
}

func TestSessionRoundTrip(t *testing.T) {
	svc, err := NewSessionService(testSecret, time.Hour)
	require.NoError(t, err)

	token, expiresAt := svc.Issue(SubjectUser, 42)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Verify(token, SubjectUser)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.ID)
	assert.NotEmpty(t, claims.SessionID)
}

func TestSessionRejectsWrongSubject(t *testing.T) {
	svc, err := NewSessionService(testSecret, time.Hour)
	require.NoError(t, err)

	token, _ := svc.Issue(SubjectUser, 1)
	_, err = svc.Verify(token, SubjectOperator)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionExpired(t *testing.T) {
	svc, err := NewSessionService(testSecret, time.Minute)
	require.NoError(t, err)

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	token, _ := svc.Issue(SubjectUser, 7)

	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = svc.Verify(token, SubjectUser)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSessionRejectsOtherKeyAndGarbage(t *testing.T) {
	a, err := NewSessionService(testSecret, time.Hour)
	require.NoError(t, err)
	b, err := NewSessionService(strings.Repeat("z", 32), time.Hour)
	require.NoError(t, err)

	token, _ := a.Issue(SubjectUser, 1)
	_, err = b.Verify(token, SubjectUser)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("v4.local.garbage", SubjectUser)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStateSigner(t *testing.T) {
	signer := NewStateSigner(testSecret)

	state, err := signer.Sign(5)
	require.NoError(t, err)

	assert.NoError(t, signer.Verify(state, 5))
	assert.Error(t, signer.Verify(state, 6))
	assert.Error(t, NewStateSigner(strings.Repeat("y", 32)).Verify(state, 5))
	assert.Error(t, signer.Verify("not-a-jwt", 5))
}

func TestResetCodes(t *testing.T) {
	svc := NewResetCodeService(15 * time.Minute)

	code, err := svc.GenerateCode()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(15*time.Minute), svc.ExpiresAt(now))

	hash := HashCode("User@Example.com", code)
	assert.True(t, CodeMatches(hash, "user@example.com", code))
	assert.True(t, CodeMatches(hash, "user@example.com", " "+code+" "))
	assert.False(t, CodeMatches(hash, "other@example.com", code))
	assert.False(t, CodeMatches(hash, "user@example.com", "000000x"))
}
