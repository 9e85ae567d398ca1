package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"anomidate/internal/models"
)

var userColumnNames = []string{
	"id", "external_id", "username", "email", "password_hash", "age", "gender", "bio", "playstyle",
	"server_preferences", "timezone", "availability", "banned", "suspended_until", "created_at", "updated_at",
}

var userColumns = strings.Join(userColumnNames, ", ")

func prefixedUserColumns(alias string) string {
	cols := make([]string, len(userColumnNames))
	for i, c := range userColumnNames {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, username string, email *string, passwordHash string) (*models.User, error) {
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		username, email, passwordHash, now, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user id: %w", err)
	}

	return &models.User{
		ID:                id,
		Username:          username,
		Email:             email,
		PasswordHash:      passwordHash,
		ServerPreferences: []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// FindByEmail returns the oldest account registered with the address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY id LIMIT 1`, email)
}

// ListExcept returns every user other than id, in id order.
func (r *UserRepository) ListExcept(ctx context.Context, id int64) ([]*models.User, error) {
	return r.findMany(ctx, `SELECT `+userColumns+` FROM users WHERE id <> ? ORDER BY id`, id)
}

func (r *UserRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.User, int, error) {
	where := ""
	var args []any
	if q := strings.TrimSpace(query); q != "" {
		where = ` WHERE username LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\'`
		pattern := "%" + escapeLike(q) + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	users, err := r.findMany(ctx,
		`SELECT `+userColumns+` FROM users`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, p models.Profile) error {
	servers, err := encodeServers(p.ServerPreferences)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET age = ?, gender = ?, bio = ?, playstyle = ?, server_preferences = ?,
			timezone = ?, availability = ?, updated_at = ? WHERE id = ?`,
		p.Age, p.Gender, p.Bio, p.Playstyle, servers, p.Timezone, p.Availability, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return checkRowsAffected(result)
}

// SetExternalID links the account to a platform identity. A platform account
// already linked to another user yields ErrDuplicate.
func (r *UserRepository) SetExternalID(ctx context.Context, id int64, externalID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET external_id = ?, updated_at = ? WHERE id = ?`,
		externalID, time.Now().UTC(), id,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("linking external id: %w", err)
	}
	return checkRowsAffected(result)
}

// SetBanned bans or unbans a user. Banning clears any suspension.
func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	query := `UPDATE users SET banned = ?, updated_at = ? WHERE id = ?`
	if banned {
		query = `UPDATE users SET banned = ?, suspended_until = NULL, updated_at = ? WHERE id = ?`
	}
	result, err := r.db.ExecContext(ctx, query, banned, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating ban: %w", err)
	}
	return checkRowsAffected(result)
}

// SetSuspendedUntil suspends a user until the given time, clearing any ban.
// A nil time lifts the suspension.
func (r *UserRepository) SetSuspendedUntil(ctx context.Context, id int64, until *time.Time) error {
	query := `UPDATE users SET suspended_until = NULL, updated_at = ? WHERE id = ?`
	args := []any{time.Now().UTC(), id}
	if until != nil {
		query = `UPDATE users SET suspended_until = ?, banned = 0, updated_at = ? WHERE id = ?`
		args = []any{timePtrToUTC(until), time.Now().UTC(), id}
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating suspension: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) findMany(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

func scanUser(s rowScanner) (*models.User, error) {
	var u models.User
	var externalID, email sql.NullString
	var age sql.NullInt64
	var servers string
	var suspendedUntil sql.NullTime

	err := s.Scan(
		&u.ID,
		&externalID,
		&u.Username,
		&email,
		&u.PasswordHash,
		&age,
		&u.Gender,
		&u.Bio,
		&u.Playstyle,
		&servers,
		&u.Timezone,
		&u.Availability,
		&u.Banned,
		&suspendedUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.ExternalID = nullStringToPtr(externalID)
	u.Email = nullStringToPtr(email)
	u.Age = nullInt64ToIntPtr(age)
	u.ServerPreferences = decodeServers(servers)
	u.SuspendedUntil = nullTimeToPtr(suspendedUntil)

	return &u, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
