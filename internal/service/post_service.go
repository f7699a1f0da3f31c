package service

import (
	"bytes"
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"

	"github.com/mlevan/hearth/internal/model"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
	"github.com/mlevan/hearth/internal/pkg/timeutil"
	"github.com/mlevan/hearth/internal/repo"
)

const renderCacheSize = 256

type renderedPost struct {
	mtime int64
	html  string
}

// PostService owns synthesized memory posts and who may read them: the
// storyteller, plus anyone holding an accepted, unrevoked membership on the
// storyteller. Share-link access bypasses this and goes through the grant
// engine instead.
type PostService struct {
	posts       *repo.PostRepo
	memberships *repo.MembershipRepo
	md          goldmark.Markdown
	rendered    *lru.Cache[string, renderedPost]
}

func NewPostService(posts *repo.PostRepo, memberships *repo.MembershipRepo) *PostService {
	cache, _ := lru.New[string, renderedPost](renderCacheSize)
	return &PostService{
		posts:       posts,
		memberships: memberships,
		md:          goldmark.New(),
		rendered:    cache,
	}
}

func (s *PostService) Create(ctx context.Context, storytellerID, conversationID, title, content string) (*model.Post, error) {
	if title == "" || content == "" {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	post := &model.Post{
		ID:             newID(),
		StorytellerID:  storytellerID,
		ConversationID: conversationID,
		Title:          title,
		Content:        content,
		Ctime:          now,
		Mtime:          now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Get enforces reader access: the owner always reads, anyone else needs an
// accepted membership for the post's storyteller. Absence of access reads as
// not-found rather than forbidden so post ids are not probeable.
func (s *PostService) Get(ctx context.Context, viewerID, viewerEmail, postID string) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.StorytellerID == viewerID {
		return post, nil
	}
	if viewerEmail != "" {
		m, err := s.memberships.GetActiveByEmail(ctx, post.StorytellerID, viewerEmail)
		if err == nil && m.AcceptedAt != 0 {
			return post, nil
		}
		if err != nil && err != appErr.ErrNotFound {
			return nil, err
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *PostService) List(ctx context.Context, storytellerID string) ([]model.Post, error) {
	return s.posts.ListByStoryteller(ctx, storytellerID)
}

// ListAccessible returns posts shared with a member through accepted
// memberships, grouped per storyteller in membership order.
func (s *PostService) ListAccessible(ctx context.Context, viewerEmail string) ([]model.Post, error) {
	grants, err := s.memberships.ListAcceptedByEmail(ctx, viewerEmail)
	if err != nil {
		return nil, err
	}
	items := make([]model.Post, 0)
	for _, grant := range grants {
		posts, err := s.posts.ListByStoryteller(ctx, grant.StorytellerID)
		if err != nil {
			return nil, err
		}
		items = append(items, posts...)
	}
	return items, nil
}

func (s *PostService) Update(ctx context.Context, storytellerID, postID, title, content string) (*model.Post, error) {
	if title == "" || content == "" {
		return nil, appErr.ErrInvalid
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.StorytellerID != storytellerID {
		return nil, appErr.ErrNotFound
	}
	post.Title = title
	post.Content = content
	post.Mtime = timeutil.NowUnix()
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// RenderHTML converts a post's markdown body, caching by (id, mtime) so an
// edited post re-renders and a hot shared post does not.
func (s *PostService) RenderHTML(post *model.Post) (string, error) {
	if cached, ok := s.rendered.Get(post.ID); ok && cached.mtime == post.Mtime {
		return cached.html, nil
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(post.Content), &buf); err != nil {
		return "", err
	}
	html := buf.String()
	s.rendered.Add(post.ID, renderedPost{mtime: post.Mtime, html: html})
	return html, nil
}
