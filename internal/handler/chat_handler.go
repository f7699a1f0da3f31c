package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mlevan/hearth/internal/pkg/errcode"
	"github.com/mlevan/hearth/internal/pkg/response"
	"github.com/mlevan/hearth/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type startConversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content      string `json:"content"`
	RecordingKey string `json:"recording_key"`
}

func (h *ChatHandler) Start(c *gin.Context) {
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	conv, err := h.chat.Start(c.Request.Context(), getUserID(c), req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"conversation": conv})
}

func (h *ChatHandler) List(c *gin.Context) {
	items, err := h.chat.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	items, err := h.chat.ListMessages(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	reply, err := h.chat.SendMessage(c.Request.Context(), getUserID(c), c.Param("id"), req.Content, req.RecordingKey)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"message": reply})
}

// Synthesize turns a finished conversation into a draft post.
func (h *ChatHandler) Synthesize(c *gin.Context) {
	post, err := h.chat.Synthesize(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"post": post})
}
