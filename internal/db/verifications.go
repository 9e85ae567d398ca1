package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"anomidate/internal/models"
)

type VerificationRepository struct {
	db *DB
}

func NewVerificationRepository(db *DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Upsert records a verification attempt. There is at most one row per user;
// a later attempt replaces the earlier one.
func (r *VerificationRepository) Upsert(ctx context.Context, v *models.ExternalVerification) (*models.ExternalVerification, error) {
	now := time.Now().UTC()
	method := v.Method
	if method == "" {
		method = models.VerificationMethodPhrase
	}

	var verifiedAt *time.Time
	if v.Verified {
		verifiedAt = &now
	}

	out := *v
	var storedVerifiedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO external_verifications
			(user_id, external_username, external_user_id, verified, method, verified_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			external_username = excluded.external_username,
			external_user_id = excluded.external_user_id,
			verified = excluded.verified,
			method = excluded.method,
			verified_at = excluded.verified_at,
			updated_at = excluded.updated_at
		RETURNING id, verified_at, created_at`,
		v.UserID, v.ExternalUsername, v.ExternalUserID, v.Verified, method, timePtrToUTC(verifiedAt), now, now,
	).Scan(&out.ID, &storedVerifiedAt, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting verification: %w", err)
	}

	out.Method = method
	out.VerifiedAt = nullTimeToPtr(storedVerifiedAt)
	out.UpdatedAt = now
	return &out, nil
}

func (r *VerificationRepository) FindByUserID(ctx context.Context, userID int64) (*models.ExternalVerification, error) {
	var v models.ExternalVerification
	var verifiedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, external_username, external_user_id, verified, method, verified_at, created_at, updated_at
		FROM external_verifications WHERE user_id = ?`,
		userID,
	).Scan(&v.ID, &v.UserID, &v.ExternalUsername, &v.ExternalUserID, &v.Verified, &v.Method, &verifiedAt, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying verification: %w", err)
	}

	v.VerifiedAt = nullTimeToPtr(verifiedAt)
	return &v, nil
}

// IsVerified reports whether the user has a verified row.
func (r *VerificationRepository) IsVerified(ctx context.Context, userID int64) (bool, error) {
	var verified bool
	err := r.db.QueryRowContext(ctx,
		`SELECT verified FROM external_verifications WHERE user_id = ?`, userID,
	).Scan(&verified)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying verification: %w", err)
	}
	return verified, nil
}

func (r *VerificationRepository) CountVerified(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM external_verifications WHERE verified = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting verifications: %w", err)
	}
	return n, nil
}
