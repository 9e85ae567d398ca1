package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"anomidate/internal/models"
)

type OperatorRepository struct {
	db *DB
}

func NewOperatorRepository(db *DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

func (r *OperatorRepository) Create(ctx context.Context, username, passwordHash string, role models.Role) (*models.Operator, error) {
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO operators (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, string(role), now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating operator: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operator id: %w", err)
	}

	return &models.Operator{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}, nil
}

func (r *OperatorRepository) FindByID(ctx context.Context, id int64) (*models.Operator, error) {
	return r.findOne(ctx, `SELECT id, username, password_hash, role, created_at, last_login_at FROM operators WHERE id = ?`, id)
}

func (r *OperatorRepository) FindByUsername(ctx context.Context, username string) (*models.Operator, error) {
	return r.findOne(ctx, `SELECT id, username, password_hash, role, created_at, last_login_at FROM operators WHERE username = ?`, username)
}

func (r *OperatorRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE operators SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating operator password: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *OperatorRepository) TouchLogin(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE operators SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating operator login: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *OperatorRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operators`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting operators: %w", err)
	}
	return n, nil
}

func (r *OperatorRepository) findOne(ctx context.Context, query string, args ...any) (*models.Operator, error) {
	var op models.Operator
	var role string
	var lastLogin sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&op.ID, &op.Username, &op.PasswordHash, &role, &op.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying operator: %w", err)
	}

	op.Role = models.Role(role)
	op.LastLoginAt = nullTimeToPtr(lastLogin)
	return &op, nil
}
