package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomidate/internal/models"
)

func TestDeleteUserCascades(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	swipes := NewSwipeRepository(database)
	messages := NewMessageRepository(database)
	verifications := NewVerificationRepository(database)
	repo := NewModerationRepository(database)

	a := createUser(t, database, "a")
	b := createUser(t, database, "b")

	_, err := swipes.Record(ctx, a.ID, b.ID, models.ActionLike, testDay, 50)
	require.NoError(t, err)
	_, err = swipes.Record(ctx, b.ID, a.ID, models.ActionLike, testDay, 50)
	require.NoError(t, err)
	_, err = messages.Create(ctx, a.ID, b.ID, "hi")
	require.NoError(t, err)
	_, err = verifications.Upsert(ctx, &models.ExternalVerification{UserID: a.ID, ExternalUsername: "a_rbx", ExternalUserID: 1, Verified: true})
	require.NoError(t, err)

	summary, err := repo.DeleteUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Messages)
	assert.Equal(t, int64(2), summary.Decisions)
	assert.Equal(t, int64(1), summary.Quotas)
	assert.Equal(t, int64(1), summary.Verifications)

	_, err = NewUserRepository(database).FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	matches, err := swipes.MutualMatches(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDeleteUserMissingRollsBack(t *testing.T) {
	database := openTestDB(t)
	_, err := NewModerationRepository(database).DeleteUser(context.Background(), 555)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestModerationLogAndCounts(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	repo := NewModerationRepository(database)
	users := NewUserRepository(database)

	op, err := NewOperatorRepository(database).Create(ctx, "mod", "hash", models.RoleModerator)
	require.NoError(t, err)

	a := createUser(t, database, "a")
	b := createUser(t, database, "b")
	require.NoError(t, users.SetBanned(ctx, a.ID, true))
	until := time.Now().Add(time.Hour)
	require.NoError(t, users.SetSuspendedUntil(ctx, b.ID, &until))

	banned, suspended, err := repo.CountRestricted(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, banned)
	assert.Equal(t, 1, suspended)

	require.NoError(t, repo.Log(ctx, op.ID, "ban", &a.ID, ""))
	require.NoError(t, repo.Log(ctx, op.ID, "suspend", &b.ID, "1 day"))

	entries, err := repo.Recent(ctx, &a.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ban", entries[0].Action)
	assert.Equal(t, "mod", entries[0].OperatorName)

	all, err := repo.Recent(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
