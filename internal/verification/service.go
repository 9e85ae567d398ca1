// Package verification links local accounts to Roblox accounts, either by
// a phrase placed in the Roblox profile description or through OAuth.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"anomidate/internal/db"
	"anomidate/internal/models"
	"anomidate/internal/roblox"
)

var (
	ErrHandleRequired = errors.New("roblox username is required")
	ErrHandleNotFound = errors.New("roblox user not found")
	ErrAlreadyLinked  = errors.New("that roblox account is linked to another user")
)

// Resolver is the subset of the Roblox client verification needs.
type Resolver interface {
	ResolveHandle(ctx context.Context, username string) (*roblox.ExternalUser, error)
	IsVerified(ctx context.Context, externalID int64) bool
	Phrase() string
}

type Service struct {
	resolver      Resolver
	users         *db.UserRepository
	verifications *db.VerificationRepository
}

func NewService(resolver Resolver, users *db.UserRepository, verifications *db.VerificationRepository) *Service {
	return &Service{
		resolver:      resolver,
		users:         users,
		verifications: verifications,
	}
}

// Phrase is the text users must put in their profile description.
func (s *Service) Phrase() string {
	return s.resolver.Phrase()
}

// Verify checks that the Roblox account named handle carries the phrase and
// records the outcome for userID. A row with Verified false is a valid result:
// the user can retry after editing the description.
func (s *Service) Verify(ctx context.Context, userID int64, handle string) (*models.ExternalVerification, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrHandleRequired
	}

	ext, err := s.resolver.ResolveHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, roblox.ErrUpstreamUnavailable) {
			slog.Warn("verification degraded", "component", "verification", "user_id", userID, "error", err)
		}
		return nil, ErrHandleNotFound
	}

	verified := s.resolver.IsVerified(ctx, ext.ID)
	if verified {
		if err := s.link(ctx, userID, ext.ID); err != nil {
			return nil, err
		}
	}

	v, err := s.verifications.Upsert(ctx, &models.ExternalVerification{
		UserID:           userID,
		ExternalUsername: ext.Name,
		ExternalUserID:   ext.ID,
		Verified:         verified,
		Method:           models.VerificationMethodPhrase,
	})
	if err != nil {
		return nil, fmt.Errorf("saving verification: %w", err)
	}

	slog.Info("verification attempt", "component", "verification", "user_id", userID, "external_id", ext.ID, "verified", verified)
	return v, nil
}

// CompleteOAuth records a verification proven by an OAuth login.
func (s *Service) CompleteOAuth(ctx context.Context, userID int64, identity *roblox.Identity) (*models.ExternalVerification, error) {
	if identity == nil || identity.ExternalUserID == 0 {
		return nil, ErrHandleNotFound
	}

	if err := s.link(ctx, userID, identity.ExternalUserID); err != nil {
		return nil, err
	}

	v, err := s.verifications.Upsert(ctx, &models.ExternalVerification{
		UserID:           userID,
		ExternalUsername: identity.Username,
		ExternalUserID:   identity.ExternalUserID,
		Verified:         true,
		Method:           models.VerificationMethodOAuth,
	})
	if err != nil {
		return nil, fmt.Errorf("saving verification: %w", err)
	}

	slog.Info("oauth verification", "component", "verification", "user_id", userID, "external_id", identity.ExternalUserID)
	return v, nil
}

// Status returns the user's verification row or db.ErrNotFound.
func (s *Service) Status(ctx context.Context, userID int64) (*models.ExternalVerification, error) {
	return s.verifications.FindByUserID(ctx, userID)
}

func (s *Service) IsVerified(ctx context.Context, userID int64) (bool, error) {
	return s.verifications.IsVerified(ctx, userID)
}

func (s *Service) link(ctx context.Context, userID, externalID int64) error {
	err := s.users.SetExternalID(ctx, userID, strconv.FormatInt(externalID, 10))
	if errors.Is(err, db.ErrDuplicate) {
		return ErrAlreadyLinked
	}
	if err != nil {
		return fmt.Errorf("linking account: %w", err)
	}
	return nil
}
