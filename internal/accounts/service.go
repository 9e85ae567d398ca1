// Package accounts handles registration, login, profiles and password resets.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"anomidate/internal/auth"
	"anomidate/internal/db"
	"anomidate/internal/models"
	"anomidate/internal/sanitize"
)

// Mailer delivers password reset codes.
type Mailer interface {
	SendPasswordResetCode(ctx context.Context, to, code string, ttl time.Duration) error
}

type RegisterInput struct {
	Username string `form:"username" validate:"required,min=3,max=30,username"`
	Password string `form:"password" validate:"required,min=8,max=72"`
	Email    string `form:"email" validate:"omitempty,email,max=254"`
}

type ProfileInput struct {
	Age          *int   `form:"age" validate:"omitempty,min=13,max=120"`
	Gender       string `form:"gender" validate:"max=32"`
	Bio          string `form:"bio" validate:"max=500"`
	Playstyle    string `form:"playstyle" validate:"max=64"`
	Servers      string `form:"servers" validate:"max=500"`
	Timezone     string `form:"timezone" validate:"omitempty,timezone"`
	Availability string `form:"availability" validate:"max=128"`
}

type resetRequestInput struct {
	Email string `form:"email" validate:"required,email"`
}

type resetInput struct {
	Email    string `form:"email" validate:"required,email"`
	Code     string `form:"code" validate:"required,len=6,numeric"`
	Password string `form:"password" validate:"required,min=8,max=72"`
}

type Service struct {
	users    *db.UserRepository
	resets   *db.PasswordResetRepository
	codes    *auth.ResetCodeService
	mailer   Mailer
	validate *validator.Validate
	now      func() time.Time
}

func NewService(users *db.UserRepository, resets *db.PasswordResetRepository, codes *auth.ResetCodeService, mailer Mailer) *Service {
	return &Service{
		users:    users,
		resets:   resets,
		codes:    codes,
		mailer:   mailer,
		validate: NewValidator(),
		now:      time.Now,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var email *string
	if in.Email != "" {
		email = &in.Email
	}

	user, err := s.users.Create(ctx, in.Username, email, hash)
	if errors.Is(err, db.ErrDuplicate) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	slog.Info("user registered", "component", "accounts", "user_id", user.ID)
	return user, nil
}

// Authenticate checks a username and password. The password is verified
// before the account state, so a banned account is only reported to someone
// who knows its password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, db.ErrNotFound) {
		auth.CheckPasswordTiming(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := CheckStanding(user, s.now()); err != nil {
		return nil, err
	}
	return user, nil
}

// CheckStanding reports ErrBanned or a SuspendedError when the user may not
// use the site.
func CheckStanding(user *models.User, now time.Time) error {
	if user.Banned {
		return ErrBanned
	}
	if user.IsSuspended(now) {
		return &SuspendedError{Until: *user.SuspendedUntil}
	}
	return nil
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	in.Gender = sanitize.Text(in.Gender)
	in.Bio = sanitize.Text(in.Bio)
	in.Playstyle = sanitize.Text(in.Playstyle)
	in.Servers = sanitize.Text(in.Servers)
	in.Timezone = strings.TrimSpace(in.Timezone)
	in.Availability = sanitize.Text(in.Availability)

	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}

	err := s.users.UpdateProfile(ctx, userID, models.Profile{
		Age:               in.Age,
		Gender:            in.Gender,
		Bio:               in.Bio,
		Playstyle:         in.Playstyle,
		ServerPreferences: ParseServers(in.Servers),
		Timezone:          in.Timezone,
		Availability:      in.Availability,
	})
	if err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, userID)
}

// ParseServers splits a comma-separated list, dropping blanks.
func ParseServers(raw string) []string {
	servers := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			servers = append(servers, part)
		}
	}
	return servers
}

// RequestPasswordReset sends a reset code when an account uses the address.
// The outcome is the same whether or not one does.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	in := resetRequestInput{Email: normalizeEmail(email)}
	if err := s.validate.Struct(in); err != nil {
		return toValidationError(err)
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			slog.Debug("password reset for unknown email", "component", "accounts")
			return nil
		}
		return err
	}

	code, err := s.codes.GenerateCode()
	if err != nil {
		return err
	}

	if _, err := s.resets.Create(ctx, in.Email, auth.HashCode(in.Email, code), s.codes.ExpiresAt(s.now())); err != nil {
		return fmt.Errorf("storing reset request: %w", err)
	}

	if err := s.mailer.SendPasswordResetCode(ctx, in.Email, code, s.codes.TTL()); err != nil {
		slog.Error("sending reset code failed", "component", "accounts", "error", err)
	}
	return nil
}

// ResetPassword sets a new password using the latest code sent to email. Each
// code allows auth.MaxResetAttempts guesses and works once.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	in := resetInput{Email: normalizeEmail(email), Code: strings.TrimSpace(code), Password: newPassword}
	if err := s.validate.Struct(in); err != nil {
		return toValidationError(err)
	}

	pr, err := s.resets.FindLatestByEmail(ctx, in.Email)
	if errors.Is(err, db.ErrNotFound) {
		return ErrInvalidResetCode
	}
	if err != nil {
		return err
	}
	if pr.Used {
		return ErrInvalidResetCode
	}
	if !s.now().Before(pr.ExpiresAt) {
		return ErrResetCodeExpired
	}

	attempts, err := s.resets.IncrementAttempts(ctx, pr.ID, auth.MaxResetAttempts)
	if err != nil {
		return err
	}
	if attempts < 0 {
		return ErrTooManyAttempts
	}

	if !auth.CodeMatches(pr.CodeHash, in.Email, in.Code) {
		return ErrInvalidResetCode
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return err
	}

	consumed, err := s.resets.ConsumeAndSetPassword(ctx, pr.ID, in.Email, hash)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrInvalidResetCode
	}

	slog.Info("password reset completed", "component", "accounts", "reset_id", pr.ID)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
