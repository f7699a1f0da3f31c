package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/mlevan/hearth/internal/model"
	"github.com/mlevan/hearth/internal/pkg/dbutil"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
)

var shareFields = []string{"id", "post_id", "token", "expires_at", "revoked_at", "ctime"}

type ShareRepo struct {
	db *sql.DB
}

func NewShareRepo(db *sql.DB) *ShareRepo {
	return &ShareRepo{db: db}
}

func scanShare(rows *sql.Rows) (*model.Share, error) {
	var s model.Share
	if err := rows.Scan(&s.ID, &s.PostID, &s.Token, &s.ExpiresAt, &s.RevokedAt, &s.Ctime); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ShareRepo) queryOne(ctx context.Context, where map[string]interface{}) (*model.Share, error) {
	sqlStr, args, err := builder.BuildSelect("shares", where, shareFields)
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
	return scanShare(rows)
}

func (r *ShareRepo) Create(ctx context.Context, share *model.Share) error {
	data := map[string]interface{}{
		"id":         share.ID,
		"post_id":    share.PostID,
		"token":      share.Token,
		"expires_at": share.ExpiresAt,
		"revoked_at": share.RevokedAt,
		"ctime":      share.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("shares", []map[string]interface{}{data})
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

func (r *ShareRepo) GetByID(ctx context.Context, id string) (*model.Share, error) {
	return r.queryOne(ctx, map[string]interface{}{"id": id})
}

// GetByToken matches the stored token column exactly; whether that column
// holds the raw secret or a digest is the service's concern.
func (r *ShareRepo) GetByToken(ctx context.Context, stored string) (*model.Share, error) {
	return r.queryOne(ctx, map[string]interface{}{"token": stored})
}

// Revoke sets revoked_at once; affected=0 means already revoked or absent.
// Shares are never deleted, the row stays for the audit trail.
func (r *ShareRepo) Revoke(ctx context.Context, id string, now int64) (int64, error) {
	where := map[string]interface{}{"id": id, "revoked_at": 0}
	update := map[string]interface{}{"revoked_at": now}
	sqlStr, args, err := builder.BuildUpdate("shares", where, update)
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

func (r *ShareRepo) ListByPost(ctx context.Context, postID string) ([]model.Share, error) {
	where := map[string]interface{}{
		"post_id":  postID,
		"_orderby": "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("shares", where, shareFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Share, 0)
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}
