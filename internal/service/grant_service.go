package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/mlevan/hearth/internal/model"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
	"github.com/mlevan/hearth/internal/pkg/token"
)

const inviteTokenTTL = 7 * 24 * time.Hour

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var allowedRoles = map[string]struct{}{
	"viewer": {},
	"editor": {},
	"owner":  {},
}

var allowedShareDurations = map[int]struct{}{
	1:  {},
	7:  {},
	30: {},
	90: {},
}

// MembershipStore is the persistence surface the grant engine needs for
// memberships. It reports conflicts and affected-row counts; it never makes
// policy decisions.
type MembershipStore interface {
	Create(ctx context.Context, m *model.Membership) error
	GetByID(ctx context.Context, id string) (*model.Membership, error)
	GetByTokenHash(ctx context.Context, hash string) (*model.Membership, error)
	GetActiveByEmail(ctx context.Context, storytellerID, email string) (*model.Membership, error)
	Accept(ctx context.Context, tokenHash string, now int64) (int64, error)
	Revoke(ctx context.Context, id string, now int64) (int64, error)
	ListByStoryteller(ctx context.Context, storytellerID string) ([]model.Membership, error)
}

type ShareStore interface {
	Create(ctx context.Context, share *model.Share) error
	GetByID(ctx context.Context, id string) (*model.Share, error)
	GetByToken(ctx context.Context, stored string) (*model.Share, error)
	Revoke(ctx context.Context, id string, now int64) (int64, error)
	ListByPost(ctx context.Context, postID string) ([]model.Share, error)
}

type PostGetter interface {
	GetByID(ctx context.Context, id string) (*model.Post, error)
}

type GrantConfig struct {
	// BaseURL prefixes the redeemable URLs handed back on issuance.
	BaseURL string
	// HashShareTokens stores share tokens as digests instead of clear text,
	// matching the membership secrecy model.
	HashShareTokens bool
}

// GrantService is the grant lifecycle engine: the only place where issue,
// redeem, revoke and expiry rules live. It keeps no state between calls.
type GrantService struct {
	memberships MembershipStore
	shares      ShareStore
	posts       PostGetter
	audit       AuditRecorder
	cfg         GrantConfig
	now         func() time.Time
}

func NewGrantService(memberships MembershipStore, shares ShareStore, posts PostGetter, audit AuditRecorder, cfg GrantConfig) *GrantService {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &GrantService{
		memberships: memberships,
		shares:      shares,
		posts:       posts,
		audit:       audit,
		cfg:         cfg,
		now:         time.Now,
	}
}

// record never fails the operation it documents: the grant transition has
// already committed, so a broken audit sink is logged and left to operators.
func (s *GrantService) record(ctx context.Context, action, targetType, targetID string, metadata map[string]interface{}) {
	if err := s.audit.Record(ctx, action, targetType, targetID, metadata); err != nil {
		logutil.GetLogger(ctx).Warn("audit record failed",
			zap.String("action", action),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}

// Invite issues a membership grant and returns it with the one-time
// redeemable URL. Only the token digest is stored; a lost URL cannot be
// recovered, re-inviting after the old invite expires or is revoked is the
// recovery path.
func (s *GrantService) Invite(ctx context.Context, storytellerID, email, role string) (*model.Membership, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if storytellerID == "" || !emailRegex.MatchString(email) {
		return nil, "", appErr.ErrInvalid
	}
	if _, ok := allowedRoles[role]; !ok {
		return nil, "", appErr.ErrInvalid
	}

	now := s.now()
	existing, err := s.memberships.GetActiveByEmail(ctx, storytellerID, email)
	if err != nil && err != appErr.ErrNotFound {
		return nil, "", err
	}
	if existing != nil {
		if existing.AcceptedAt != 0 || existing.TokenExpiresAt > now.Unix() {
			return nil, "", appErr.ErrConflict
		}
		// Expired pending invite: retire it so the active-uniqueness index
		// lets the fresh one in.
		if _, err := s.memberships.Revoke(ctx, existing.ID, now.Unix()); err != nil {
			return nil, "", err
		}
		s.record(ctx, model.AuditActionMembershipRevoked, model.AuditTargetMembership, existing.ID, map[string]interface{}{
			"storyteller_id": storytellerID,
			"email":          email,
			"reason":         "invite_expired",
		})
	}

	raw, digest := token.New()
	m := &model.Membership{
		ID:             newID(),
		StorytellerID:  storytellerID,
		UserEmail:      email,
		Role:           role,
		TokenHash:      digest,
		TokenExpiresAt: now.Add(inviteTokenTTL).Unix(),
		InvitedAt:      now.Unix(),
	}
	// The pre-check above can race with a concurrent invite for the same
	// pair; the partial unique index settles it and the loser gets
	// ErrConflict here.
	if err := s.memberships.Create(ctx, m); err != nil {
		return nil, "", err
	}
	s.record(ctx, model.AuditActionInviteCreated, model.AuditTargetMembership, m.ID, map[string]interface{}{
		"storyteller_id": storytellerID,
		"email":          email,
		"role":           role,
	})
	return m, s.inviteURL(raw), nil
}

// AcceptInvite redeems a raw invite token. Unknown, already-consumed and
// revoked tokens all come back as ErrNotFound on purpose: an unauthenticated
// caller learns nothing about which it was.
func (s *GrantService) AcceptInvite(ctx context.Context, rawToken string) (*model.Membership, error) {
	if rawToken == "" {
		return nil, appErr.ErrInvalid
	}
	digest := token.Digest(rawToken)
	m, err := s.memberships.GetByTokenHash(ctx, digest)
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	if m.TokenExpiresAt <= now {
		return nil, appErr.ErrExpired
	}
	// One conditional write decides concurrent redemptions: whoever flips
	// the row wins, everyone else sees zero rows and the generic failure.
	affected, err := s.memberships.Accept(ctx, digest, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, appErr.ErrNotFound
	}
	m.AcceptedAt = now
	m.TokenHash = ""
	s.record(ctx, model.AuditActionInviteAccepted, model.AuditTargetMembership, m.ID, map[string]interface{}{
		"email": m.UserEmail,
		"role":  m.Role,
	})
	return m, nil
}

// RevokeMembership is idempotent and audits every call, even when the grant
// was already revoked: the audit trail records intent, not just transitions.
// Grants belonging to another storyteller come back as ErrNotFound.
func (s *GrantService) RevokeMembership(ctx context.Context, storytellerID, id string) error {
	m, err := s.memberships.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if m.StorytellerID != storytellerID {
		return appErr.ErrNotFound
	}
	if _, err := s.memberships.Revoke(ctx, id, s.now().Unix()); err != nil {
		return err
	}
	s.record(ctx, model.AuditActionMembershipRevoked, model.AuditTargetMembership, id, map[string]interface{}{
		"storyteller_id": m.StorytellerID,
		"email":          m.UserEmail,
	})
	return nil
}

func (s *GrantService) ListMemberships(ctx context.Context, storytellerID string) ([]model.Membership, error) {
	return s.memberships.ListByStoryteller(ctx, storytellerID)
}

// CreateShare issues an anonymous read grant on one post, valid for the
// chosen number of days.
func (s *GrantService) CreateShare(ctx context.Context, storytellerID, postID string, durationDays int) (*model.Share, string, error) {
	if _, ok := allowedShareDurations[durationDays]; !ok {
		return nil, "", appErr.ErrInvalid
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, "", err
	}
	if post.StorytellerID != storytellerID {
		return nil, "", appErr.ErrNotFound
	}
	now := s.now()
	raw, digest := token.New()
	stored := raw
	if s.cfg.HashShareTokens {
		stored = digest
	}
	share := &model.Share{
		ID:        newID(),
		PostID:    postID,
		Token:     stored,
		ExpiresAt: now.Add(time.Duration(durationDays) * 24 * time.Hour).Unix(),
		Ctime:     now.Unix(),
	}
	if err := s.shares.Create(ctx, share); err != nil {
		return nil, "", err
	}
	s.record(ctx, model.AuditActionShareCreated, model.AuditTargetShare, share.ID, map[string]interface{}{
		"post_id":       postID,
		"duration_days": durationDays,
	})
	return share, s.shareURL(raw), nil
}

// SharedPost is what an anonymous share-link holder gets back.
type SharedPost struct {
	Share *model.Share `json:"share"`
	Post  *model.Post  `json:"post"`
}

// ResolveShare reads through an active share grant. Shares stay redeemable
// until revoked or expired; resolution never mutates them.
func (s *GrantService) ResolveShare(ctx context.Context, rawToken string) (*SharedPost, error) {
	if rawToken == "" {
		return nil, appErr.ErrInvalid
	}
	stored := rawToken
	if s.cfg.HashShareTokens {
		stored = token.Digest(rawToken)
	}
	share, err := s.shares.GetByToken(ctx, stored)
	if err != nil {
		return nil, err
	}
	if share.RevokedAt != 0 {
		return nil, appErr.ErrForbidden
	}
	if share.ExpiresAt <= s.now().Unix() {
		return nil, appErr.ErrForbidden
	}
	post, err := s.posts.GetByID(ctx, share.PostID)
	if err != nil {
		return nil, err
	}
	return &SharedPost{Share: share, Post: post}, nil
}

func (s *GrantService) RevokeShare(ctx context.Context, storytellerID, id string) error {
	share, err := s.shares.GetByID(ctx, id)
	if err != nil {
		return err
	}
	post, err := s.posts.GetByID(ctx, share.PostID)
	if err != nil {
		return err
	}
	if post.StorytellerID != storytellerID {
		return appErr.ErrNotFound
	}
	if _, err := s.shares.Revoke(ctx, id, s.now().Unix()); err != nil {
		return err
	}
	s.record(ctx, model.AuditActionShareRevoked, model.AuditTargetShare, id, map[string]interface{}{
		"post_id": share.PostID,
	})
	return nil
}

func (s *GrantService) ListShares(ctx context.Context, storytellerID, postID string) ([]model.Share, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.StorytellerID != storytellerID {
		return nil, appErr.ErrNotFound
	}
	return s.shares.ListByPost(ctx, postID)
}

func (s *GrantService) inviteURL(raw string) string {
	return fmt.Sprintf("%s/invite/accept?token=%s", s.cfg.BaseURL, raw)
}

func (s *GrantService) shareURL(raw string) string {
	return fmt.Sprintf("%s/share/%s", s.cfg.BaseURL, raw)
}
