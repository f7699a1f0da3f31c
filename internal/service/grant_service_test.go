package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mlevan/hearth/internal/model"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
)

// memMembershipStore mirrors the store contract, including the conditional
// writes and the active-uniqueness constraint, so lifecycle rules can be
// exercised without a database.
type memMembershipStore struct {
	mu    sync.Mutex
	items map[string]*model.Membership
}

func newMemMembershipStore() *memMembershipStore {
	return &memMembershipStore{items: make(map[string]*model.Membership)}
}

func (s *memMembershipStore) Create(_ context.Context, m *model.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.StorytellerID == m.StorytellerID && existing.UserEmail == m.UserEmail && existing.RevokedAt == 0 {
			return appErr.ErrConflict
		}
	}
	clone := *m
	s.items[m.ID] = &clone
	return nil
}

func (s *memMembershipStore) GetByID(_ context.Context, id string) (*model.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *memMembershipStore) GetByTokenHash(_ context.Context, hash string) (*model.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.items {
		if m.TokenHash == hash && m.AcceptedAt == 0 && m.RevokedAt == 0 {
			clone := *m
			return &clone, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *memMembershipStore) GetActiveByEmail(_ context.Context, storytellerID, email string) (*model.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.items {
		if m.StorytellerID == storytellerID && m.UserEmail == email && m.RevokedAt == 0 {
			clone := *m
			return &clone, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *memMembershipStore) Accept(_ context.Context, tokenHash string, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.items {
		if m.TokenHash == tokenHash && m.AcceptedAt == 0 && m.RevokedAt == 0 {
			m.AcceptedAt = now
			m.TokenHash = ""
			return 1, nil
		}
	}
	return 0, nil
}

func (s *memMembershipStore) Revoke(_ context.Context, id string, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok || m.RevokedAt != 0 {
		return 0, nil
	}
	m.RevokedAt = now
	return 1, nil
}

func (s *memMembershipStore) ListByStoryteller(_ context.Context, storytellerID string) ([]model.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.Membership, 0)
	for _, m := range s.items {
		if m.StorytellerID == storytellerID {
			items = append(items, *m)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].InvitedAt > items[j].InvitedAt })
	return items, nil
}

type memShareStore struct {
	mu    sync.Mutex
	items map[string]*model.Share
}

func newMemShareStore() *memShareStore {
	return &memShareStore{items: make(map[string]*model.Share)}
}

func (s *memShareStore) Create(_ context.Context, share *model.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.Token == share.Token {
			return appErr.ErrConflict
		}
	}
	clone := *share
	s.items[share.ID] = &clone
	return nil
}

func (s *memShareStore) GetByID(_ context.Context, id string) (*model.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.items[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	clone := *share
	return &clone, nil
}

func (s *memShareStore) GetByToken(_ context.Context, stored string) (*model.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, share := range s.items {
		if share.Token == stored {
			clone := *share
			return &clone, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *memShareStore) Revoke(_ context.Context, id string, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.items[id]
	if !ok || share.RevokedAt != 0 {
		return 0, nil
	}
	share.RevokedAt = now
	return 1, nil
}

func (s *memShareStore) ListByPost(_ context.Context, postID string) ([]model.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.Share, 0)
	for _, share := range s.items {
		if share.PostID == postID {
			items = append(items, *share)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Ctime > items[j].Ctime })
	return items, nil
}

type memPostStore struct {
	items map[string]*model.Post
}

func (s *memPostStore) GetByID(_ context.Context, id string) (*model.Post, error) {
	post, ok := s.items[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return post, nil
}

type memAuditRecorder struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *memAuditRecorder) Record(_ context.Context, action, targetType, targetID string, _ map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, model.AuditLog{Action: action, TargetType: targetType, TargetID: targetID})
	return nil
}

func (r *memAuditRecorder) byAction(action string) []model.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]model.AuditLog, 0)
	for _, entry := range r.entries {
		if entry.Action == action {
			matched = append(matched, entry)
		}
	}
	return matched
}

type grantFixture struct {
	svc         *GrantService
	memberships *memMembershipStore
	shares      *memShareStore
	audit       *memAuditRecorder
	clock       time.Time
}

func newGrantFixture(t *testing.T) *grantFixture {
	t.Helper()
	fx := &grantFixture{
		memberships: newMemMembershipStore(),
		shares:      newMemShareStore(),
		audit:       &memAuditRecorder{},
		clock:       time.Unix(1700000000, 0),
	}
	posts := &memPostStore{items: map[string]*model.Post{
		"post-1": {ID: "post-1", StorytellerID: "teller-1", Title: "The Old Farmhouse", Content: "body"},
	}}
	fx.svc = NewGrantService(fx.memberships, fx.shares, posts, fx.audit, GrantConfig{BaseURL: "https://hearth.test/"})
	fx.svc.now = func() time.Time { return fx.clock }
	return fx
}

func (fx *grantFixture) advance(d time.Duration) {
	fx.clock = fx.clock.Add(d)
}

func TestInviteValidation(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	_, _, err := fx.svc.Invite(ctx, "teller-1", "not-an-email", "viewer")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, _, err = fx.svc.Invite(ctx, "teller-1", "a@b.com", "admin")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, _, err = fx.svc.Invite(ctx, "", "a@b.com", "viewer")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestInviteIssuesHashedToken(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	m, url, err := fx.svc.Invite(ctx, "teller-1", "A@B.com", "viewer")
	require.NoError(t, err)
	require.Equal(t, "a@b.com", m.UserEmail)
	require.Contains(t, url, "https://hearth.test/invite/accept?token=")
	require.NotContains(t, url, m.TokenHash)
	require.Len(t, m.TokenHash, 64)
	require.Equal(t, fx.clock.Add(7*24*time.Hour).Unix(), m.TokenExpiresAt)

	created := fx.audit.byAction(model.AuditActionInviteCreated)
	require.Len(t, created, 1)
	require.Equal(t, m.ID, created[0].TargetID)
}

func TestInviteActiveUniqueness(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	_, _, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)

	_, _, err = fx.svc.Invite(ctx, "teller-1", "a@b.com", "editor")
	require.ErrorIs(t, err, appErr.ErrConflict)

	// A different storyteller or a different email is unrelated.
	_, _, err = fx.svc.Invite(ctx, "teller-2", "a@b.com", "viewer")
	require.NoError(t, err)
	_, _, err = fx.svc.Invite(ctx, "teller-1", "c@d.com", "viewer")
	require.NoError(t, err)
}

func TestInviteReinviteAfterExpiry(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	first, _, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)

	fx.advance(8 * 24 * time.Hour)

	second, _, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	old, err := fx.memberships.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotZero(t, old.RevokedAt)
}

func TestAcceptInviteHappyPath(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	m, url, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "editor")
	require.NoError(t, err)
	raw := url[len("https://hearth.test/invite/accept?token="):]

	accepted, err := fx.svc.AcceptInvite(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, m.ID, accepted.ID)
	require.Equal(t, "teller-1", accepted.StorytellerID)
	require.NotZero(t, accepted.AcceptedAt)
	require.Empty(t, accepted.TokenHash)

	stored, err := fx.memberships.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Empty(t, stored.TokenHash)
	require.Equal(t, accepted.AcceptedAt, stored.AcceptedAt)

	entries := fx.audit.byAction(model.AuditActionInviteAccepted)
	require.Len(t, entries, 1)
	require.Equal(t, m.ID, entries[0].TargetID)
}

func TestAcceptInviteFailuresIndistinguishable(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	// Never-issued token.
	_, err := fx.svc.AcceptInvite(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, url, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)
	raw := url[len("https://hearth.test/invite/accept?token="):]

	// Already accepted.
	_, err = fx.svc.AcceptInvite(ctx, raw)
	require.NoError(t, err)
	_, err = fx.svc.AcceptInvite(ctx, raw)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	// Revoked before redemption.
	m2, url2, err := fx.svc.Invite(ctx, "teller-1", "c@d.com", "viewer")
	require.NoError(t, err)
	raw2 := url2[len("https://hearth.test/invite/accept?token="):]
	require.NoError(t, fx.svc.RevokeMembership(ctx, "teller-1", m2.ID))
	_, err = fx.svc.AcceptInvite(ctx, raw2)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestAcceptInviteExpired(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	m, url, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)
	raw := url[len("https://hearth.test/invite/accept?token="):]

	fx.advance(7*24*time.Hour + time.Second)

	_, err = fx.svc.AcceptInvite(ctx, raw)
	require.ErrorIs(t, err, appErr.ErrExpired)

	// Expiry failure must not mutate the row.
	stored, err := fx.memberships.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Zero(t, stored.AcceptedAt)
	require.NotEmpty(t, stored.TokenHash)
}

func TestAcceptInviteConcurrentSingleWinner(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	_, url, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)
	raw := url[len("https://hearth.test/invite/accept?token="):]

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = fx.svc.AcceptInvite(ctx, raw)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, appErr.ErrNotFound)
		}
	}
	require.Equal(t, 1, wins)
	require.Len(t, fx.audit.byAction(model.AuditActionInviteAccepted), 1)
}

func TestMembershipWriteOnceTimestamps(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	m, url, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)
	raw := url[len("https://hearth.test/invite/accept?token="):]

	accepted, err := fx.svc.AcceptInvite(ctx, raw)
	require.NoError(t, err)

	fx.advance(time.Hour)
	require.NoError(t, fx.svc.RevokeMembership(ctx, "teller-1", m.ID))
	revoked, err := fx.memberships.GetByID(ctx, m.ID)
	require.NoError(t, err)

	// Replay both transitions later; neither timestamp may move.
	fx.advance(time.Hour)
	_, err = fx.svc.AcceptInvite(ctx, raw)
	require.Error(t, err)
	require.NoError(t, fx.svc.RevokeMembership(ctx, "teller-1", m.ID))

	final, err := fx.memberships.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, accepted.AcceptedAt, final.AcceptedAt)
	require.Equal(t, revoked.RevokedAt, final.RevokedAt)
}

func TestRevokeMembershipAlwaysAudits(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	m, _, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)

	require.NoError(t, fx.svc.RevokeMembership(ctx, "teller-1", m.ID))
	require.NoError(t, fx.svc.RevokeMembership(ctx, "teller-1", m.ID))
	require.Len(t, fx.audit.byAction(model.AuditActionMembershipRevoked), 2)

	require.ErrorIs(t, fx.svc.RevokeMembership(ctx, "teller-1", "missing"), appErr.ErrNotFound)
}

func TestGrantsScopedToStoryteller(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	m, _, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)
	require.ErrorIs(t, fx.svc.RevokeMembership(ctx, "teller-2", m.ID), appErr.ErrNotFound)

	_, _, err = fx.svc.CreateShare(ctx, "teller-2", "post-1", 7)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	share, _, err := fx.svc.CreateShare(ctx, "teller-1", "post-1", 7)
	require.NoError(t, err)
	require.ErrorIs(t, fx.svc.RevokeShare(ctx, "teller-2", share.ID), appErr.ErrNotFound)

	_, err = fx.svc.ListShares(ctx, "teller-2", "post-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestListMembershipsNewestFirst(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	first, _, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)
	fx.advance(time.Minute)
	second, _, err := fx.svc.Invite(ctx, "teller-1", "c@d.com", "viewer")
	require.NoError(t, err)

	items, err := fx.svc.ListMemberships(ctx, "teller-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, second.ID, items[0].ID)
	require.Equal(t, first.ID, items[1].ID)
}

func TestCreateShareValidation(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	_, _, err := fx.svc.CreateShare(ctx, "teller-1", "post-1", 3)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, _, err = fx.svc.CreateShare(ctx, "teller-1", "missing-post", 7)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestShareResolveAndExpiry(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	share, url, err := fx.svc.CreateShare(ctx, "teller-1", "post-1", 1)
	require.NoError(t, err)
	raw := url[len("https://hearth.test/share/"):]

	resolved, err := fx.svc.ResolveShare(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, share.ID, resolved.Share.ID)
	require.Equal(t, "post-1", resolved.Post.ID)

	// Multi-use until expiry.
	_, err = fx.svc.ResolveShare(ctx, raw)
	require.NoError(t, err)

	fx.advance(24 * time.Hour)
	_, err = fx.svc.ResolveShare(ctx, raw)
	require.ErrorIs(t, err, appErr.ErrForbidden)
}

func TestShareRevokeBeatsRemainingTime(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	share, url, err := fx.svc.CreateShare(ctx, "teller-1", "post-1", 90)
	require.NoError(t, err)
	raw := url[len("https://hearth.test/share/"):]

	require.NoError(t, fx.svc.RevokeShare(ctx, "teller-1", share.ID))
	_, err = fx.svc.ResolveShare(ctx, raw)
	require.ErrorIs(t, err, appErr.ErrForbidden)

	// Idempotent, and still audited each time.
	require.NoError(t, fx.svc.RevokeShare(ctx, "teller-1", share.ID))
	require.Len(t, fx.audit.byAction(model.AuditActionShareRevoked), 2)

	require.ErrorIs(t, fx.svc.RevokeShare(ctx, "teller-1", "missing"), appErr.ErrNotFound)
}

func TestShareUnknownToken(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	_, err := fx.svc.ResolveShare(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestShareHashedAtRestMode(t *testing.T) {
	fx := newGrantFixture(t)
	fx.svc.cfg.HashShareTokens = true
	ctx := context.Background()

	share, url, err := fx.svc.CreateShare(ctx, "teller-1", "post-1", 7)
	require.NoError(t, err)
	raw := url[len("https://hearth.test/share/"):]

	// Stored form must not be the raw secret.
	stored, err := fx.shares.GetByID(ctx, share.ID)
	require.NoError(t, err)
	require.NotEqual(t, raw, stored.Token)

	resolved, err := fx.svc.ResolveShare(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, share.ID, resolved.Share.ID)
}

func TestEveryMutationAuditsMatchingTarget(t *testing.T) {
	fx := newGrantFixture(t)
	ctx := context.Background()

	m, url, err := fx.svc.Invite(ctx, "teller-1", "a@b.com", "viewer")
	require.NoError(t, err)
	raw := url[len("https://hearth.test/invite/accept?token="):]
	_, err = fx.svc.AcceptInvite(ctx, raw)
	require.NoError(t, err)
	require.NoError(t, fx.svc.RevokeMembership(ctx, "teller-1", m.ID))

	share, _, err := fx.svc.CreateShare(ctx, "teller-1", "post-1", 7)
	require.NoError(t, err)
	require.NoError(t, fx.svc.RevokeShare(ctx, "teller-1", share.ID))

	for _, action := range []string{
		model.AuditActionInviteCreated,
		model.AuditActionInviteAccepted,
		model.AuditActionMembershipRevoked,
	} {
		entries := fx.audit.byAction(action)
		require.Len(t, entries, 1, action)
		require.Equal(t, m.ID, entries[0].TargetID, action)
		require.Equal(t, model.AuditTargetMembership, entries[0].TargetType, action)
	}
	for _, action := range []string{
		model.AuditActionShareCreated,
		model.AuditActionShareRevoked,
	} {
		entries := fx.audit.byAction(action)
		require.Len(t, entries, 1, action)
		require.Equal(t, share.ID, entries[0].TargetID, action)
		require.Equal(t, model.AuditTargetShare, entries[0].TargetType, action)
	}
}
