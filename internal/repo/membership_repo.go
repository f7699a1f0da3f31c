package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/mlevan/hearth/internal/model"
	"github.com/mlevan/hearth/internal/pkg/dbutil"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
)

const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleOwner  = "owner"
)

var membershipFields = []string{"id", "storyteller_id", "user_email", "role", "token_hash", "token_expires_at", "invited_at", "accepted_at", "revoked_at"}

type MembershipRepo struct {
	db *sql.DB
}

func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

func scanMembership(rows *sql.Rows) (*model.Membership, error) {
	var m model.Membership
	if err := rows.Scan(&m.ID, &m.StorytellerID, &m.UserEmail, &m.Role, &m.TokenHash, &m.TokenExpiresAt, &m.InvitedAt, &m.AcceptedAt, &m.RevokedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MembershipRepo) queryOne(ctx context.Context, where map[string]interface{}) (*model.Membership, error) {
	sqlStr, args, err := builder.BuildSelect("memberships", where, membershipFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanMembership(rows)
}

// Create inserts a pending invite. The partial unique index on
// (storyteller_id, user_email) where revoked_at = 0 rejects a second active
// row, which surfaces here as ErrConflict.
func (r *MembershipRepo) Create(ctx context.Context, m *model.Membership) error {
	data := map[string]interface{}{
		"id":               m.ID,
		"storyteller_id":   m.StorytellerID,
		"user_email":       m.UserEmail,
		"role":             m.Role,
		"token_hash":       m.TokenHash,
		"token_expires_at": m.TokenExpiresAt,
		"invited_at":       m.InvitedAt,
		"accepted_at":      m.AcceptedAt,
		"revoked_at":       m.RevokedAt,
	}
	sqlStr, args, err := builder.BuildInsert("memberships", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *MembershipRepo) GetByID(ctx context.Context, id string) (*model.Membership, error) {
	return r.queryOne(ctx, map[string]interface{}{"id": id})
}

// GetByTokenHash only sees pending rows: a consumed or revoked token is
// invisible, so the caller cannot tell those apart from a token that never
// existed.
func (r *MembershipRepo) GetByTokenHash(ctx context.Context, hash string) (*model.Membership, error) {
	return r.queryOne(ctx, map[string]interface{}{
		"token_hash":  hash,
		"accepted_at": 0,
		"revoked_at":  0,
	})
}

// GetActiveByEmail returns the single non-revoked membership for the pair,
// pending or accepted.
func (r *MembershipRepo) GetActiveByEmail(ctx context.Context, storytellerID, email string) (*model.Membership, error) {
	return r.queryOne(ctx, map[string]interface{}{
		"storyteller_id": storytellerID,
		"user_email":     email,
		"revoked_at":     0,
	})
}

// Accept is the single conditional write behind invite redemption: it flips
// accepted_at and drops the token digest only while the row is still pending.
// With concurrent redemptions exactly one caller sees affected=1.
func (r *MembershipRepo) Accept(ctx context.Context, tokenHash string, now int64) (int64, error) {
	where := map[string]interface{}{
		"token_hash":  tokenHash,
		"accepted_at": 0,
		"revoked_at":  0,
	}
	update := map[string]interface{}{
		"accepted_at": now,
		"token_hash":  "",
	}
	sqlStr, args, err := builder.BuildUpdate("memberships", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Revoke sets revoked_at once; affected=0 means the row was already revoked
// or absent. The repo reports the count, policy lives in the service.
func (r *MembershipRepo) Revoke(ctx context.Context, id string, now int64) (int64, error) {
	where := map[string]interface{}{"id": id, "revoked_at": 0}
	update := map[string]interface{}{"revoked_at": now}
	sqlStr, args, err := builder.BuildUpdate("memberships", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *MembershipRepo) ListByStoryteller(ctx context.Context, storytellerID string) ([]model.Membership, error) {
	where := map[string]interface{}{
		"storyteller_id": storytellerID,
		"_orderby":       "invited_at desc",
	}
	sqlStr, args, err := builder.BuildSelect("memberships", where, membershipFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

// ListAcceptedByEmail lists the accepted, non-revoked memberships held by an
// email across storytellers. Used to gate member reads of posts.
func (r *MembershipRepo) ListAcceptedByEmail(ctx context.Context, email string) ([]model.Membership, error) {
	where := map[string]interface{}{
		"user_email":    email,
		"accepted_at >": 0,
		"revoked_at":    0,
		"_orderby":      "invited_at desc",
	}
	sqlStr, args, err := builder.BuildSelect("memberships", where, membershipFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

// ClearExpiredTokenHashes drops dead invite digests: pending rows whose
// token window has passed can never be redeemed, so keeping the digest at
// rest buys nothing.
func (r *MembershipRepo) ClearExpiredTokenHashes(ctx context.Context, now int64) (int64, error) {
	where := map[string]interface{}{
		"accepted_at":        0,
		"revoked_at":         0,
		"token_expires_at <": now,
		"token_hash !=":      "",
	}
	update := map[string]interface{}{"token_hash": ""}
	sqlStr, args, err := builder.BuildUpdate("memberships", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
