package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// nullTimeToPtr converts a sql.NullTime to *time.Time.
func nullTimeToPtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return &nt.Time
}

func nullStringToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullInt64ToIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func timePtrToUTC(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func encodeServers(servers []string) (string, error) {
	if servers == nil {
		servers = []string{}
	}
	b, err := json.Marshal(servers)
	if err != nil {
		return "", fmt.Errorf("encoding server preferences: %w", err)
	}
	return string(b), nil
}

func decodeServers(raw string) []string {
	var servers []string
	if raw == "" || json.Unmarshal([]byte(raw), &servers) != nil {
		return []string{}
	}
	return servers
}

// checkRowsAffected verifies at least one row was affected, returns ErrNotFound if not
func checkRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
