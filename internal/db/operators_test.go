package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomidate/internal/models"
)

func TestOperatorRepository(t *testing.T) {
	database := openTestDB(t)
	repo := NewOperatorRepository(database)
	ctx := context.Background()

	op, err := repo.Create(ctx, "root", "hash", models.RoleAdmin)
	require.NoError(t, err)

	_, err = repo.Create(ctx, "ROOT", "hash", models.RoleModerator)
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, repo.TouchLogin(ctx, op.ID))
	found, err := repo.FindByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, found.Role)
	assert.NotNil(t, found.LastLoginAt)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.FindByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerificationUpsertKeepsOneRow(t *testing.T) {
	database := openTestDB(t)
	repo := NewVerificationRepository(database)
	ctx := context.Background()
	u := createUser(t, database, "v")

	first, err := repo.Upsert(ctx, &models.ExternalVerification{UserID: u.ID, ExternalUsername: "old", ExternalUserID: 1})
	require.NoError(t, err)
	assert.Nil(t, first.VerifiedAt)

	verified, err := repo.IsVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, verified)

	second, err := repo.Upsert(ctx, &models.ExternalVerification{UserID: u.ID, ExternalUsername: "new", ExternalUserID: 2, Verified: true, Method: models.VerificationMethodOAuth})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.NotNil(t, second.VerifiedAt)

	got, err := repo.FindByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.ExternalUsername)
	assert.Equal(t, int64(2), got.ExternalUserID)
	assert.Equal(t, models.VerificationMethodOAuth, got.Method)

	n, err := repo.CountVerified(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.FindByUserID(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
