package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"anomidate/internal/models"
)

type ModerationRepository struct {
	db *DB
}

func NewModerationRepository(db *DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

// DeleteSummary reports how many rows a cascade delete removed per table.
type DeleteSummary struct {
	Messages      int64
	Decisions     int64
	Quotas        int64
	Verifications int64
}

// DeleteUser removes a user and everything that references them in a single
// transaction. Either every row goes or none does.
func (r *ModerationRepository) DeleteUser(ctx context.Context, userID int64) (*DeleteSummary, error) {
	var summary DeleteSummary

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		steps := []struct {
			query string
			args  []any
			dst   *int64
		}{
			{`DELETE FROM messages WHERE sender_id = ? OR receiver_id = ?`, []any{userID, userID}, &summary.Messages},
			{`DELETE FROM swipe_decisions WHERE actor_id = ? OR target_id = ?`, []any{userID, userID}, &summary.Decisions},
			{`DELETE FROM daily_quotas WHERE user_id = ?`, []any{userID}, &summary.Quotas},
			{`DELETE FROM external_verifications WHERE user_id = ?`, []any{userID}, &summary.Verifications},
		}
		for _, step := range steps {
			result, err := tx.ExecContext(ctx, step.query, step.args...)
			if err != nil {
				return fmt.Errorf("deleting user data: %w", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("checking rows affected: %w", err)
			}
			*step.dst = n
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
		if err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		return checkRowsAffected(result)
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *ModerationRepository) Log(ctx context.Context, operatorID int64, action string, targetUserID *int64, detail string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO moderation_log (operator_id, action, target_user_id, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		operatorID, action, targetUserID, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing moderation log: %w", err)
	}
	return nil
}

// Recent returns the newest log entries, optionally restricted to one target user.
func (r *ModerationRepository) Recent(ctx context.Context, targetUserID *int64, limit int) ([]*models.ModerationEntry, error) {
	query := `SELECT l.id, l.operator_id, COALESCE(o.username, ''), l.action, l.target_user_id, l.detail, l.created_at
		FROM moderation_log l
		LEFT JOIN operators o ON o.id = l.operator_id`
	args := []any{}
	if targetUserID != nil {
		query += ` WHERE l.target_user_id = ?`
		args = append(args, *targetUserID)
	}
	query += ` ORDER BY l.created_at DESC, l.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying moderation log: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.ModerationEntry, 0)
	for rows.Next() {
		var e models.ModerationEntry
		var target sql.NullInt64
		if err := rows.Scan(&e.ID, &e.OperatorID, &e.OperatorName, &e.Action, &target, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning moderation log: %w", err)
		}
		if target.Valid {
			id := target.Int64
			e.TargetUserID = &id
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CountRestricted returns banned users and users whose suspension is still running at now.
func (r *ModerationRepository) CountRestricted(ctx context.Context, now time.Time) (banned, suspended int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN banned = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN suspended_until IS NOT NULL AND suspended_until > ? THEN 1 ELSE 0 END), 0)
		FROM users`,
		now.UTC(),
	).Scan(&banned, &suspended)
	if err != nil {
		return 0, 0, fmt.Errorf("counting restricted users: %w", err)
	}
	return banned, suspended, nil
}
