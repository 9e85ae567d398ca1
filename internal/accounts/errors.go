package accounts

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrBanned             = errors.New("account is banned")
	ErrSuspended          = errors.New("account is suspended")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidResetCode   = errors.New("invalid or used reset code")
	ErrResetCodeExpired   = errors.New("reset code has expired")
	ErrTooManyAttempts    = errors.New("too many attempts, request a new code")
)

// SuspendedError carries the end of a suspension. It matches ErrSuspended.
type SuspendedError struct {
	Until time.Time
}

func (e *SuspendedError) Error() string {
	return fmt.Sprintf("account is suspended until %s", e.Until.UTC().Format("2006-01-02 15:04 MST"))
}

func (e *SuspendedError) Is(target error) bool {
	return target == ErrSuspended
}

// ValidationError reports the first field that failed validation in a form.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
