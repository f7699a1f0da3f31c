package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mlevan/hearth/internal/middleware"
)

type RouterDeps struct {
	Auth        *AuthHandler
	Posts       *PostHandler
	Memberships *MembershipHandler
	Shares      *ShareHandler
	Chat        *ChatHandler
	Files       *FileHandler
	Audit       *AuditHandler
	JWTSecret   []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/posts", deps.Posts.Create)
	authGroup.GET("/posts", deps.Posts.List)
	authGroup.GET("/posts/shared-with-me", deps.Posts.ListAccessible)
	authGroup.GET("/posts/:id", deps.Posts.Get)
	authGroup.PUT("/posts/:id", deps.Posts.Update)

	authGroup.POST("/memberships/invite", deps.Memberships.Invite)
	authGroup.GET("/memberships", deps.Memberships.List)
	authGroup.DELETE("/memberships/:id", deps.Memberships.Revoke)

	authGroup.POST("/shares", deps.Shares.Create)
	authGroup.GET("/posts/:id/shares", deps.Shares.ListForPost)
	authGroup.DELETE("/shares/:id", deps.Shares.Revoke)

	authGroup.POST("/conversations", deps.Chat.Start)
	authGroup.GET("/conversations", deps.Chat.List)
	authGroup.GET("/conversations/:id/messages", deps.Chat.ListMessages)
	authGroup.POST("/conversations/:id/messages", deps.Chat.SendMessage)
	authGroup.POST("/conversations/:id/synthesize", deps.Chat.Synthesize)

	authGroup.POST("/files/upload", deps.Files.Upload)

	authGroup.GET("/audit", deps.Audit.ListRecent)
	authGroup.GET("/audit/:target_type/:target_id", deps.Audit.ListByTarget)

	// Token redemption is anonymous; throttle guessing attempts per
	// (ip, route) instead of per account.
	publicGroup := api.Group("/public")
	publicGroup.Use(middleware.RateLimit(time.Second))
	publicGroup.GET("/invites/accept", deps.Memberships.PublicAccept)
	publicGroup.POST("/invites/accept", deps.Memberships.PublicAccept)
	publicGroup.GET("/shares/:token", deps.Shares.PublicGet)

	api.GET("/files/:key", deps.Files.Get)
}
