// Package moderation backs the admin console. Every operation takes the
// acting operator and checks its role.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"anomidate/internal/auth"
	"anomidate/internal/db"
	"anomidate/internal/models"
)

const (
	PageSize               = 25
	MinOperatorPasswordLen = 12
	recentLogLimit         = 50
)

const (
	ActionBan                = "ban"
	ActionUnban              = "unban"
	ActionSuspend            = "suspend"
	ActionUnsuspend          = "unsuspend"
	ActionUnmatch            = "unmatch"
	ActionDeleteConversation = "delete_conversation"
	ActionDeleteUser         = "delete_user"
)

var (
	ErrForbidden          = errors.New("operator role does not allow this action")
	ErrInvalidCredentials = errors.New("invalid operator credentials")
	ErrInvalidRole        = errors.New("role must be moderator or admin")
	ErrOperatorExists     = errors.New("operator already exists")
	ErrWeakPassword       = fmt.Errorf("operator password must be at least %d characters", MinOperatorPasswordLen)
	ErrInvalidSuspension  = errors.New("suspension must end in the future")
	ErrSamePair           = errors.New("pair must name two different users")
)

type Stats struct {
	TotalUsers     int
	VerifiedUsers  int
	MutualMatches  int
	Messages       int
	BannedUsers    int
	SuspendedUsers int
	SwipesToday    int
}

type UserPage struct {
	Users []*models.User
	Query string
	Page  int
	Pages int
	Total int
}

type UserDetail struct {
	User         *models.User
	Verification *models.ExternalVerification
	Matches      []*models.User
	MessageCount int
	Log          []*models.ModerationEntry
}

type Service struct {
	operators     *db.OperatorRepository
	users         *db.UserRepository
	verifications *db.VerificationRepository
	swipes        *db.SwipeRepository
	messages      *db.MessageRepository
	quotas        *db.QuotaRepository
	log           *db.ModerationRepository
	dayLoc        *time.Location
	now           func() time.Time
}

// NewService builds the console on database. dayLoc is the zone swipe quotas
// count days in.
func NewService(database *db.DB, dayLoc *time.Location) *Service {
	if dayLoc == nil {
		dayLoc = time.UTC
	}
	return &Service{
		operators:     db.NewOperatorRepository(database),
		users:         db.NewUserRepository(database),
		verifications: db.NewVerificationRepository(database),
		swipes:        db.NewSwipeRepository(database),
		messages:      db.NewMessageRepository(database),
		quotas:        db.NewQuotaRepository(database),
		log:           db.NewModerationRepository(database),
		dayLoc:        dayLoc,
		now:           time.Now,
	}
}

func authorize(op *models.Operator, required models.Role) error {
	if op == nil {
		return ErrForbidden
	}
	if required == models.RoleAdmin && op.Role != models.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// Login checks operator credentials and records the login time.
func (s *Service) Login(ctx context.Context, username, password string) (*models.Operator, error) {
	op, err := s.operators.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, db.ErrNotFound) {
		auth.CheckPasswordTiming(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := auth.CheckPassword(op.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.operators.TouchLogin(ctx, op.ID); err != nil {
		slog.Warn("recording operator login failed", "component", "moderation", "operator_id", op.ID, "error", err)
	}
	slog.Info("operator logged in", "component", "moderation", "operator_id", op.ID)
	return op, nil
}

func (s *Service) Operator(ctx context.Context, id int64) (*models.Operator, error) {
	return s.operators.FindByID(ctx, id)
}

func (s *Service) CreateOperator(ctx context.Context, username, password string, role models.Role) (*models.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if len(password) < MinOperatorPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	op, err := s.operators.Create(ctx, username, hash, role)
	if errors.Is(err, db.ErrDuplicate) {
		return nil, ErrOperatorExists
	}
	if err != nil {
		return nil, err
	}

	slog.Info("operator created", "component", "moderation", "operator_id", op.ID, "role", role)
	return op, nil
}

// Bootstrap creates an admin from configuration when no operator exists yet.
func (s *Service) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	if username == "" {
		return false, nil
	}
	n, err := s.operators.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateOperator(ctx, username, password, models.RoleAdmin); err != nil {
		return false, fmt.Errorf("bootstrapping operator: %w", err)
	}
	return true, nil
}

func (s *Service) Stats(ctx context.Context, op *models.Operator) (*Stats, error) {
	if err := authorize(op, models.RoleModerator); err != nil {
		return nil, err
	}

	var st Stats
	var err error
	if st.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if st.VerifiedUsers, err = s.verifications.CountVerified(ctx); err != nil {
		return nil, err
	}
	if st.MutualMatches, err = s.swipes.CountMutualPairs(ctx); err != nil {
		return nil, err
	}
	if st.Messages, err = s.messages.Count(ctx); err != nil {
		return nil, err
	}
	now := s.now()
	if st.BannedUsers, st.SuspendedUsers, err = s.log.CountRestricted(ctx, now); err != nil {
		return nil, err
	}
	if st.SwipesToday, err = s.quotas.TotalOnDay(ctx, now.In(s.dayLoc).Format(db.DayLayout)); err != nil {
		return nil, err
	}
	return &st, nil
}

// ListUsers searches usernames and emails, newest accounts first.
func (s *Service) ListUsers(ctx context.Context, op *models.Operator, query string, page int) (*UserPage, error) {
	if err := authorize(op, models.RoleModerator); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	query = strings.TrimSpace(query)
	users, total, err := s.users.Search(ctx, query, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}

	pages := (total + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}
	return &UserPage{Users: users, Query: query, Page: page, Pages: pages, Total: total}, nil
}

func (s *Service) UserDetail(ctx context.Context, op *models.Operator, userID int64) (*UserDetail, error) {
	if err := authorize(op, models.RoleModerator); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	detail := &UserDetail{User: user}

	v, err := s.verifications.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		detail.Verification = v
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}

	if detail.Matches, err = s.swipes.MutualMatches(ctx, userID); err != nil {
		return nil, err
	}
	if detail.MessageCount, err = s.messages.CountFor(ctx, userID); err != nil {
		return nil, err
	}
	if detail.Log, err = s.log.Recent(ctx, &userID, recentLogLimit); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) RecentActions(ctx context.Context, op *models.Operator) ([]*models.ModerationEntry, error) {
	if err := authorize(op, models.RoleModerator); err != nil {
		return nil, err
	}
	return s.log.Recent(ctx, nil, recentLogLimit)
}

func (s *Service) Ban(ctx context.Context, op *models.Operator, userID int64) error {
	if err := authorize(op, models.RoleModerator); err != nil {
		return err
	}
	if err := s.users.SetBanned(ctx, userID, true); err != nil {
		return err
	}
	return s.record(ctx, op, ActionBan, &userID, "")
}

func (s *Service) Unban(ctx context.Context, op *models.Operator, userID int64) error {
	if err := authorize(op, models.RoleModerator); err != nil {
		return err
	}
	if err := s.users.SetBanned(ctx, userID, false); err != nil {
		return err
	}
	return s.record(ctx, op, ActionUnban, &userID, "")
}

// Suspend blocks the user until the given time and lifts any ban.
func (s *Service) Suspend(ctx context.Context, op *models.Operator, userID int64, until time.Time) error {
	if err := authorize(op, models.RoleModerator); err != nil {
		return err
	}
	if !until.After(s.now()) {
		return ErrInvalidSuspension
	}
	if err := s.users.SetSuspendedUntil(ctx, userID, &until); err != nil {
		return err
	}
	return s.record(ctx, op, ActionSuspend, &userID, "until "+until.UTC().Format(time.RFC3339))
}

func (s *Service) Unsuspend(ctx context.Context, op *models.Operator, userID int64) error {
	if err := authorize(op, models.RoleModerator); err != nil {
		return err
	}
	if err := s.users.SetSuspendedUntil(ctx, userID, nil); err != nil {
		return err
	}
	return s.record(ctx, op, ActionUnsuspend, &userID, "")
}

// Unmatch removes both users' decisions about each other. It returns the
// number of decisions removed.
func (s *Service) Unmatch(ctx context.Context, op *models.Operator, a, b int64) (int64, error) {
	if err := authorize(op, models.RoleModerator); err != nil {
		return 0, err
	}
	if a == b {
		return 0, ErrSamePair
	}
	n, err := s.swipes.DeletePair(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return n, s.record(ctx, op, ActionUnmatch, &a, fmt.Sprintf("with user %d", b))
}

func (s *Service) DeleteConversation(ctx context.Context, op *models.Operator, a, b int64) (int64, error) {
	if err := authorize(op, models.RoleModerator); err != nil {
		return 0, err
	}
	if a == b {
		return 0, ErrSamePair
	}
	n, err := s.messages.DeleteConversation(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return n, s.record(ctx, op, ActionDeleteConversation, &a, fmt.Sprintf("with user %d, %d messages", b, n))
}

// DeleteUser removes the account and all its data. Admins only.
func (s *Service) DeleteUser(ctx context.Context, op *models.Operator, userID int64) (*db.DeleteSummary, error) {
	if err := authorize(op, models.RoleAdmin); err != nil {
		return nil, err
	}

	summary, err := s.log.DeleteUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("messages=%d decisions=%d quotas=%d verifications=%d",
		summary.Messages, summary.Decisions, summary.Quotas, summary.Verifications)
	return summary, s.record(ctx, op, ActionDeleteUser, &userID, detail)
}

func (s *Service) record(ctx context.Context, op *models.Operator, action string, target *int64, detail string) error {
	attrs := []any{"component", "moderation", "operator_id", op.ID, "action", action, "detail", detail}
	if target != nil {
		attrs = append(attrs, "target_user_id", *target)
	}
	slog.Info("moderation action", attrs...)
	if err := s.log.Log(ctx, op.ID, action, target, detail); err != nil {
		return fmt.Errorf("recording %s: %w", action, err)
	}
	return nil
}
