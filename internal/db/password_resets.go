package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"anomidate/internal/models"
)

type PasswordResetRepository struct {
	db *DB
}

func NewPasswordResetRepository(db *DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) (*models.PasswordReset, error) {
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO password_resets (email, code_hash, expires_at, used, attempts, created_at) VALUES (?, ?, ?, 0, 0, ?)`,
		email, codeHash, expiresAt.UTC(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating password reset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading password reset id: %w", err)
	}

	return &models.PasswordReset{
		ID:        id,
		Email:     email,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
	}, nil
}

// FindLatestByEmail returns the newest request for the address, used or not.
func (r *PasswordResetRepository) FindLatestByEmail(ctx context.Context, email string) (*models.PasswordReset, error) {
	var pr models.PasswordReset
	var usedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, code_hash, expires_at, used, used_at, attempts, created_at
		FROM password_resets WHERE email = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		email,
	).Scan(&pr.ID, &pr.Email, &pr.CodeHash, &pr.ExpiresAt, &pr.Used, &usedAt, &pr.Attempts, &pr.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying password reset: %w", err)
	}

	pr.UsedAt = nullTimeToPtr(usedAt)
	return &pr, nil
}

// IncrementAttempts atomically increments the attempt count only if it is
// below max, and returns the new value. Returns -1 if the request was already
// at or above the limit (no update performed).
func (r *PasswordResetRepository) IncrementAttempts(ctx context.Context, id int64, max int) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE password_resets SET attempts = attempts + 1 WHERE id = ? AND attempts < ? RETURNING attempts`,
		id, max,
	).Scan(&attempts)

	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing attempts: %w", err)
	}

	return attempts, nil
}

// ConsumeAndSetPassword marks the request used and, in the same transaction,
// sets the password of every account registered with its email. It reports
// false without changing anything when the request was already used.
func (r *PasswordResetRepository) ConsumeAndSetPassword(ctx context.Context, id int64, email, passwordHash string) (bool, error) {
	consumed := false
	now := time.Now().UTC()

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE password_resets SET used = 1, used_at = ? WHERE id = ? AND used = 0`, now, id,
		)
		if err != nil {
			return fmt.Errorf("marking reset used: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}
		consumed = true

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = ?, updated_at = ? WHERE email = ?`,
			passwordHash, now, email,
		); err != nil {
			return fmt.Errorf("updating password: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}

// DeleteExpiredBefore removes requests that expired before cutoff.
func (r *PasswordResetRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired password resets: %w", err)
	}

	return result.RowsAffected()
}
