package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mlevan/hearth/internal/model"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
	"github.com/mlevan/hearth/internal/pkg/timeutil"
	"github.com/mlevan/hearth/internal/repo"
	"github.com/mlevan/hearth/test/testutil"
)

func TestMembershipRepoInviteLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	memberships := repo.NewMembershipRepo(db)
	ctx := context.Background()
	now := timeutil.NowUnix()
	teller := "teller-" + testutil.RandomID(t)
	email := testutil.RandomID(t) + "@example.com"
	hash := testutil.RandomID(t) + testutil.RandomID(t)

	m := &model.Membership{
		ID:             testutil.RandomID(t),
		StorytellerID:  teller,
		UserEmail:      email,
		Role:           repo.RoleViewer,
		TokenHash:      hash,
		TokenExpiresAt: now + 3600,
		InvitedAt:      now,
	}
	require.NoError(t, memberships.Create(ctx, m))

	// second active row for the same pair hits the partial unique index
	dup := *m
	dup.ID = testutil.RandomID(t)
	dup.TokenHash = testutil.RandomID(t) + testutil.RandomID(t)
	require.ErrorIs(t, memberships.Create(ctx, &dup), appErr.ErrConflict)

	pending, err := memberships.GetByTokenHash(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, m.ID, pending.ID)

	affected, err := memberships.Accept(ctx, hash, now+10)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	// consumed token is invisible and cannot be redeemed again
	_, err = memberships.GetByTokenHash(ctx, hash)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	affected, err = memberships.Accept(ctx, hash, now+20)
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)

	accepted, err := memberships.GetActiveByEmail(ctx, teller, email)
	require.NoError(t, err)
	require.EqualValues(t, now+10, accepted.AcceptedAt)
	require.Empty(t, accepted.TokenHash)

	items, err := memberships.ListAcceptedByEmail(ctx, email)
	require.NoError(t, err)
	require.Len(t, items, 1)

	affected, err = memberships.Revoke(ctx, m.ID, now+30)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	affected, err = memberships.Revoke(ctx, m.ID, now+40)
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)

	_, err = memberships.GetActiveByEmail(ctx, teller, email)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	// revoked pair can be invited again
	again := *m
	again.ID = testutil.RandomID(t)
	again.TokenHash = testutil.RandomID(t) + testutil.RandomID(t)
	require.NoError(t, memberships.Create(ctx, &again))
}

func TestMembershipRepoClearExpiredTokenHashes(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	memberships := repo.NewMembershipRepo(db)
	ctx := context.Background()
	now := timeutil.NowUnix()
	teller := "teller-" + testutil.RandomID(t)

	stale := &model.Membership{
		ID:             testutil.RandomID(t),
		StorytellerID:  teller,
		UserEmail:      testutil.RandomID(t) + "@example.com",
		Role:           repo.RoleViewer,
		TokenHash:      testutil.RandomID(t) + testutil.RandomID(t),
		TokenExpiresAt: now - 100,
		InvitedAt:      now - 200,
	}
	fresh := &model.Membership{
		ID:             testutil.RandomID(t),
		StorytellerID:  teller,
		UserEmail:      testutil.RandomID(t) + "@example.com",
		Role:           repo.RoleViewer,
		TokenHash:      testutil.RandomID(t) + testutil.RandomID(t),
		TokenExpiresAt: now + 3600,
		InvitedAt:      now,
	}
	require.NoError(t, memberships.Create(ctx, stale))
	require.NoError(t, memberships.Create(ctx, fresh))

	cleared, err := memberships.ClearExpiredTokenHashes(ctx, now)
	require.NoError(t, err)
	require.GreaterOrEqual(t, cleared, int64(1))

	got, err := memberships.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Empty(t, got.TokenHash)

	kept, err := memberships.GetByTokenHash(ctx, fresh.TokenHash)
	require.NoError(t, err)
	require.Equal(t, fresh.ID, kept.ID)
}
