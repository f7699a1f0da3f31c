package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/mlevan/hearth/internal/model"
	"github.com/mlevan/hearth/internal/pkg/dbutil"
)

var auditLogFields = []string{"id", "action", "target_type", "target_id", "metadata", "ctime"}

// AuditLogRepo is append-only: rows are inserted and listed, never updated
// or deleted.
type AuditLogRepo struct {
	db *sql.DB
}

func NewAuditLogRepo(db *sql.DB) *AuditLogRepo {
	return &AuditLogRepo{db: db}
}

func (r *AuditLogRepo) Append(ctx context.Context, entry *model.AuditLog) error {
	data := map[string]interface{}{
		"id":          entry.ID,
		"action":      entry.Action,
		"target_type": entry.TargetType,
		"target_id":   entry.TargetID,
		"metadata":    entry.Metadata,
		"ctime":       entry.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("audit_logs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *AuditLogRepo) ListByTarget(ctx context.Context, targetType, targetID string, limit, offset uint) ([]model.AuditLog, error) {
	where := map[string]interface{}{
		"target_type": targetType,
		"target_id":   targetID,
		"_orderby":    "ctime desc",
		"_limit":      []uint{offset, limit},
	}
	return r.list(ctx, where)
}

func (r *AuditLogRepo) ListRecent(ctx context.Context, limit, offset uint) ([]model.AuditLog, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
		"_limit":   []uint{offset, limit},
	}
	return r.list(ctx, where)
}

func (r *AuditLogRepo) list(ctx context.Context, where map[string]interface{}) ([]model.AuditLog, error) {
	sqlStr, args, err := builder.BuildSelect("audit_logs", where, auditLogFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.AuditLog, 0)
	for rows.Next() {
		var entry model.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.TargetType, &entry.TargetID, &entry.Metadata, &entry.Ctime); err != nil {
			return nil, err
		}
		items = append(items, entry)
	}
	return items, rows.Err()
}
