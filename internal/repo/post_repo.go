package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/mlevan/hearth/internal/model"
	"github.com/mlevan/hearth/internal/pkg/dbutil"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
)

var postFields = []string{"id", "storyteller_id", "conversation_id", "title", "content", "ctime", "mtime"}

type PostRepo struct {
	db *sql.DB
}

func NewPostRepo(db *sql.DB) *PostRepo {
	return &PostRepo{db: db}
}

func scanPost(rows *sql.Rows) (*model.Post, error) {
	var p model.Post
	if err := rows.Scan(&p.ID, &p.StorytellerID, &p.ConversationID, &p.Title, &p.Content, &p.Ctime, &p.Mtime); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostRepo) Create(ctx context.Context, post *model.Post) error {
	data := map[string]interface{}{
		"id":              post.ID,
		"storyteller_id":  post.StorytellerID,
		"conversation_id": post.ConversationID,
		"title":           post.Title,
		"content":         post.Content,
		"ctime":           post.Ctime,
		"mtime":           post.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("posts", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetByID is unscoped: share resolution reads a post on behalf of an
// anonymous token holder. Owner checks happen in the service.
func (r *PostRepo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("posts", where, postFields)
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
	return scanPost(rows)
}

func (r *PostRepo) Update(ctx context.Context, post *model.Post) error {
	where := map[string]interface{}{"id": post.ID, "storyteller_id": post.StorytellerID}
	update := map[string]interface{}{
		"title":   post.Title,
		"content": post.Content,
		"mtime":   post.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("posts", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *PostRepo) ListByStoryteller(ctx context.Context, storytellerID string) ([]model.Post, error) {
	where := map[string]interface{}{
		"storyteller_id": storytellerID,
		"_orderby":       "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("posts", where, postFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}
