package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mlevan/hearth/internal/model"
	"github.com/mlevan/hearth/internal/pkg/timeutil"
	"github.com/mlevan/hearth/internal/repo"
	"github.com/mlevan/hearth/test/testutil"
)

func TestAuditLogRepoAppendAndList(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	logs := repo.NewAuditLogRepo(db)
	ctx := context.Background()
	now := timeutil.NowUnix()
	targetID := "membership-" + testutil.RandomID(t)

	first := &model.AuditLog{
		ID:         testutil.RandomID(t),
		Action:     model.AuditActionInviteCreated,
		TargetType: model.AuditTargetMembership,
		TargetID:   targetID,
		Metadata:   `{"email":"a@b.com"}`,
		Ctime:      now,
	}
	second := &model.AuditLog{
		ID:         testutil.RandomID(t),
		Action:     model.AuditActionInviteAccepted,
		TargetType: model.AuditTargetMembership,
		TargetID:   targetID,
		Metadata:   `{}`,
		Ctime:      now + 1,
	}
	require.NoError(t, logs.Append(ctx, first))
	require.NoError(t, logs.Append(ctx, second))

	items, err := logs.ListByTarget(ctx, model.AuditTargetMembership, targetID, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, second.ID, items[0].ID)
	require.Equal(t, first.ID, items[1].ID)
}
