package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mlevan/hearth/internal/pkg/errcode"
	"github.com/mlevan/hearth/internal/pkg/response"
	"github.com/mlevan/hearth/internal/service"
)

type ShareHandler struct {
	grants *service.GrantService
	posts  *service.PostService
}

func NewShareHandler(grants *service.GrantService, posts *service.PostService) *ShareHandler {
	return &ShareHandler{grants: grants, posts: posts}
}

type createShareRequest struct {
	PostID       string `json:"post_id"`
	DurationDays int    `json:"duration_days"`
}

func (h *ShareHandler) Create(c *gin.Context) {
	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	share, shareURL, err := h.grants.CreateShare(c.Request.Context(), getUserID(c), req.PostID, req.DurationDays)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"share": share, "share_url": shareURL})
}

func (h *ShareHandler) ListForPost(c *gin.Context) {
	items, err := h.grants.ListShares(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *ShareHandler) Revoke(c *gin.Context) {
	if err := h.grants.RevokeShare(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

// PublicGet resolves a share token for an anonymous reader. The post comes
// back with its rendered HTML so the front end never needs raw markdown.
func (h *ShareHandler) PublicGet(c *gin.Context) {
	shared, err := h.grants.ResolveShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		handleTokenError(c, err)
		return
	}
	html, err := h.posts.RenderHTML(shared.Post)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"post":       shared.Post,
		"html":       html,
		"expires_at": shared.Share.ExpiresAt,
	})
}
