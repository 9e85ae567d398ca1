package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"anomidate/internal/models"
)

type SwipeRepository struct {
	db *DB
}

func NewSwipeRepository(db *DB) *SwipeRepository {
	return &SwipeRepository{db: db}
}

// Record charges one action against the actor's quota for day and stores the
// decision, overwriting any earlier decision for the same pair. Both writes
// share a transaction: when the quota is exhausted ErrQuotaExceeded is
// returned and nothing is written. The new quota count is returned.
func (r *SwipeRepository) Record(ctx context.Context, actorID, targetID int64, action models.Action, day string, limit int) (int, error) {
	var count int
	now := time.Now().UTC()

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO daily_quotas (user_id, day, swipe_count) VALUES (?, ?, 1)
			ON CONFLICT (user_id, day) DO UPDATE SET swipe_count = daily_quotas.swipe_count + 1
				WHERE daily_quotas.swipe_count < ?
			RETURNING swipe_count`,
			actorID, day, limit,
		).Scan(&count)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrQuotaExceeded
		}
		if err != nil {
			if IsForeignKeyError(err) {
				return ErrNotFound
			}
			return fmt.Errorf("incrementing quota: %w", err)
		}
		if count > limit {
			return ErrQuotaExceeded
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO swipe_decisions (actor_id, target_id, action, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (actor_id, target_id) DO UPDATE SET
				action = excluded.action,
				updated_at = excluded.updated_at`,
			actorID, targetID, string(action), now, now,
		)
		if err != nil {
			if IsForeignKeyError(err) {
				return ErrNotFound
			}
			return fmt.Errorf("upserting decision: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SwipeRepository) FindDecision(ctx context.Context, actorID, targetID int64) (*models.SwipeDecision, error) {
	var d models.SwipeDecision
	var action string
	err := r.db.QueryRowContext(ctx,
		`SELECT actor_id, target_id, action, created_at, updated_at FROM swipe_decisions WHERE actor_id = ? AND target_id = ?`,
		actorID, targetID,
	).Scan(&d.ActorID, &d.TargetID, &action, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying decision: %w", err)
	}
	d.Action = models.Action(action)
	return &d, nil
}

func (r *SwipeRepository) HasLiked(ctx context.Context, actorID, targetID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM swipe_decisions WHERE actor_id = ? AND target_id = ? AND action = 'like'`,
		actorID, targetID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking like: %w", err)
	}
	return n > 0, nil
}

func (r *SwipeRepository) IsMutual(ctx context.Context, a, b int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mutual_matches WHERE user_id = ? AND match_id = ?`, a, b,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking mutual match: %w", err)
	}
	return n > 0, nil
}

// MutualMatches lists users who like userID back, ordered by username
// ignoring case.
func (r *SwipeRepository) MutualMatches(ctx context.Context, userID int64) ([]*models.User, error) {
	users := NewUserRepository(r.db)
	return users.findMany(ctx,
		`SELECT `+prefixedUserColumns("u")+`
		FROM mutual_matches m
		JOIN users u ON u.id = m.match_id
		WHERE m.user_id = ?
		ORDER BY u.username COLLATE NOCASE, u.id`,
		userID,
	)
}

func (r *SwipeRepository) CountMatchesFor(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutual_matches WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting matches: %w", err)
	}
	return n, nil
}

// CountMutualPairs counts each matched pair once.
func (r *SwipeRepository) CountMutualPairs(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutual_matches WHERE user_id < match_id`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting mutual matches: %w", err)
	}
	return n, nil
}

// DecidedTargets returns the ids the actor has already liked or passed.
func (r *SwipeRepository) DecidedTargets(ctx context.Context, actorID int64) (map[int64]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT target_id FROM swipe_decisions WHERE actor_id = ?`, actorID)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	decided := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		decided[id] = struct{}{}
	}
	return decided, rows.Err()
}

// DeletePair removes the decisions between a and b in both directions,
// which also dissolves their mutual match.
func (r *SwipeRepository) DeletePair(ctx context.Context, a, b int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM swipe_decisions WHERE (actor_id = ? AND target_id = ?) OR (actor_id = ? AND target_id = ?)`,
		a, b, b, a,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting decisions: %w", err)
	}
	return result.RowsAffected()
}
