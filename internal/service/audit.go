package service

import (
	"context"
	"encoding/json"

	"github.com/mlevan/hearth/internal/model"
	"github.com/mlevan/hearth/internal/pkg/timeutil"
	"github.com/mlevan/hearth/internal/repo"
)

// AuditRecorder appends one immutable lifecycle fact. The grant engine only
// ever writes through this; it never reads audit rows back for decisions.
type AuditRecorder interface {
	Record(ctx context.Context, action, targetType, targetID string, metadata map[string]interface{}) error
}

type dbAuditRecorder struct {
	logs *repo.AuditLogRepo
}

func NewAuditRecorder(logs *repo.AuditLogRepo) AuditRecorder {
	return &dbAuditRecorder{logs: logs}
}

func (r *dbAuditRecorder) Record(ctx context.Context, action, targetType, targetID string, metadata map[string]interface{}) error {
	encoded := "{}"
	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			encoded = string(data)
		}
	}
	return r.logs.Append(ctx, &model.AuditLog{
		ID:         newID(),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   encoded,
		Ctime:      timeutil.NowUnix(),
	})
}
