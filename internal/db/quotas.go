package db

import (
	"context"
	"fmt"
)

// DayLayout is the format of the quota day column.
const DayLayout = "2006-01-02"

type QuotaRepository struct {
	db *DB
}

func NewQuotaRepository(db *DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Count returns the number of actions the user has taken on day, 0 if none.
func (r *QuotaRepository) Count(ctx context.Context, userID int64, day string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(swipe_count), 0) FROM daily_quotas WHERE user_id = ? AND day = ?`,
		userID, day,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("querying quota: %w", err)
	}
	return n, nil
}

// TotalOnDay sums every user's actions on day.
func (r *QuotaRepository) TotalOnDay(ctx context.Context, day string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(swipe_count), 0) FROM daily_quotas WHERE day = ?`, day,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("summing quotas: %w", err)
	}
	return n, nil
}

// DeleteBefore removes counters for days earlier than day (YYYY-MM-DD).
func (r *QuotaRepository) DeleteBefore(ctx context.Context, day string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM daily_quotas WHERE day < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("deleting old quotas: %w", err)
	}
	return result.RowsAffected()
}
