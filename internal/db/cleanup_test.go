package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomidate/internal/models"
)

func TestCleanupRemovesStaleRows(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	resets := NewPasswordResetRepository(database)
	quotas := NewQuotaRepository(database)
	swipes := NewSwipeRepository(database)

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	a := createUser(t, database, "a")
	b := createUser(t, database, "b")

	_, err := swipes.Record(ctx, a.ID, b.ID, models.ActionLike, "2026-10-01", 50)
	require.NoError(t, err)
	_, err = swipes.Record(ctx, a.ID, b.ID, models.ActionLike, "2026-10-15", 50)
	require.NoError(t, err)
	_, err = resets.Create(ctx, "x@example.com", "h", now.Add(-72*time.Hour))
	require.NoError(t, err)
	_, err = resets.Create(ctx, "x@example.com", "h", now.Add(-time.Hour))
	require.NoError(t, err)

	svc := NewCleanupService(resets, quotas)
	svc.now = func() time.Time { return now }
	svc.runCleanup(ctx)

	old, err := quotas.Count(ctx, a.ID, "2026-10-01")
	require.NoError(t, err)
	assert.Equal(t, 0, old)
	recent, err := quotas.Count(ctx, a.ID, "2026-10-15")
	require.NoError(t, err)
	assert.Equal(t, 1, recent)

	var remaining int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM password_resets`).Scan(&remaining))
	assert.Equal(t, 1, remaining)
}
