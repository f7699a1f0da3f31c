package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mlevan/hearth/internal/pkg/errcode"
	"github.com/mlevan/hearth/internal/pkg/response"
	"github.com/mlevan/hearth/internal/service"
)

type PostHandler struct {
	posts *service.PostService
}

func NewPostHandler(posts *service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

type postRequest struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
}

func (h *PostHandler) Create(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	post, err := h.posts.Create(c.Request.Context(), getUserID(c), req.ConversationID, req.Title, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"post": post})
}

func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), getUserID(c), getUserEmail(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	html, err := h.posts.RenderHTML(post)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"post": post, "html": html})
}

func (h *PostHandler) List(c *gin.Context) {
	items, err := h.posts.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

// ListAccessible returns the posts shared with the caller through accepted
// memberships, as opposed to the ones the caller authored.
func (h *PostHandler) ListAccessible(c *gin.Context) {
	items, err := h.posts.ListAccessible(c.Request.Context(), getUserEmail(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *PostHandler) Update(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	post, err := h.posts.Update(c.Request.Context(), getUserID(c), c.Param("id"), req.Title, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"post": post})
}
