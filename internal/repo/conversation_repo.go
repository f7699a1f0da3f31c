package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/mlevan/hearth/internal/model"
	"github.com/mlevan/hearth/internal/pkg/dbutil"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
)

var (
	conversationFields = []string{"id", "storyteller_id", "title", "ctime", "mtime"}
	messageFields      = []string{"id", "conversation_id", "speaker", "content", "recording_key", "ctime"}
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	data := map[string]interface{}{
		"id":             conv.ID,
		"storyteller_id": conv.StorytellerID,
		"title":          conv.Title,
		"ctime":          conv.Ctime,
		"mtime":          conv.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("conversations", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ConversationRepo) GetByID(ctx context.Context, storytellerID, id string) (*model.Conversation, error) {
	where := map[string]interface{}{"id": id, "storyteller_id": storytellerID}
	sqlStr, args, err := builder.BuildSelect("conversations", where, conversationFields)
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
	var conv model.Conversation
	if err := rows.Scan(&conv.ID, &conv.StorytellerID, &conv.Title, &conv.Ctime, &conv.Mtime); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) Touch(ctx context.Context, storytellerID, id string, mtime int64) error {
	where := map[string]interface{}{"id": id, "storyteller_id": storytellerID}
	update := map[string]interface{}{"mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("conversations", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ConversationRepo) ListByStoryteller(ctx context.Context, storytellerID string) ([]model.Conversation, error) {
	where := map[string]interface{}{
		"storyteller_id": storytellerID,
		"_orderby":       "mtime desc",
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, conversationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Conversation, 0)
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.StorytellerID, &conv.Title, &conv.Ctime, &conv.Mtime); err != nil {
			return nil, err
		}
		items = append(items, conv)
	}
	return items, rows.Err()
}

func (r *ConversationRepo) AppendMessage(ctx context.Context, msg *model.Message) error {
	data := map[string]interface{}{
		"id":              msg.ID,
		"conversation_id": msg.ConversationID,
		"speaker":         msg.Speaker,
		"content":         msg.Content,
		"recording_key":   msg.RecordingKey,
		"ctime":           msg.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	where := map[string]interface{}{
		"conversation_id": conversationID,
		"_orderby":        "ctime asc",
	}
	sqlStr, args, err := builder.BuildSelect("messages", where, messageFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Message, 0)
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Speaker, &msg.Content, &msg.RecordingKey, &msg.Ctime); err != nil {
			return nil, err
		}
		items = append(items, msg)
	}
	return items, rows.Err()
}
