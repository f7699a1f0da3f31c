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

func TestShareRepoLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	shares := repo.NewShareRepo(db)
	ctx := context.Background()
	now := timeutil.NowUnix()
	postID := "post-" + testutil.RandomID(t)
	token := testutil.RandomID(t) + testutil.RandomID(t)

	share := &model.Share{
		ID:        testutil.RandomID(t),
		PostID:    postID,
		Token:     token,
		ExpiresAt: now + 3600,
		Ctime:     now,
	}
	require.NoError(t, shares.Create(ctx, share))

	fetched, err := shares.GetByToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, share.ID, fetched.ID)

	_, err = shares.GetByToken(ctx, "no-such-token")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	second := &model.Share{
		ID:        testutil.RandomID(t),
		PostID:    postID,
		Token:     testutil.RandomID(t) + testutil.RandomID(t),
		ExpiresAt: now + 7200,
		Ctime:     now + 1,
	}
	require.NoError(t, shares.Create(ctx, second))

	items, err := shares.ListByPost(ctx, postID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	affected, err := shares.Revoke(ctx, share.ID, now+10)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	affected, err = shares.Revoke(ctx, share.ID, now+20)
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)

	// revocation keeps the row; resolution policy lives above the repo
	revoked, err := shares.GetByToken(ctx, token)
	require.NoError(t, err)
	require.EqualValues(t, now+10, revoked.RevokedAt)
}
