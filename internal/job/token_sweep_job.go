package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/mlevan/hearth/internal/repo"
)

// TokenSweepJob clears the stored digests of invite tokens whose expiry has
// passed. The rows stay for the audit trail and re-invite bookkeeping; only
// the redeemable secret is dropped, so a leaked old digest is worthless.
type TokenSweepJob struct {
	memberships *repo.MembershipRepo
}

func NewTokenSweepJob(memberships *repo.MembershipRepo) *TokenSweepJob {
	return &TokenSweepJob{memberships: memberships}
}

func (j *TokenSweepJob) Name() string {
	return "invite_token_sweep"
}

func (j *TokenSweepJob) Run(ctx context.Context) error {
	if j.memberships == nil {
		return nil
	}
	cleared, err := j.memberships.ClearExpiredTokenHashes(ctx, time.Now().Unix())
	if err != nil {
		return err
	}
	if cleared > 0 {
		logutil.GetLogger(ctx).Info("expired invite tokens cleared", zap.Int64("count", cleared))
	}
	return nil
}
