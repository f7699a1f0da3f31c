package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/mlevan/hearth/internal/middleware"
	"github.com/mlevan/hearth/internal/pkg/errcode"
	apperr "github.com/mlevan/hearth/internal/pkg/errors"
	"github.com/mlevan/hearth/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func getUserEmail(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserEmailKey)
	email, _ := value.(string)
	return email
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	switch {
	case apperr.Is(err, apperr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case apperr.Is(err, apperr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case apperr.Is(err, apperr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case apperr.Is(err, apperr.ErrExpired):
		response.Error(c, errcode.ErrExpired, "expired")
	case apperr.Is(err, apperr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case apperr.Is(err, apperr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case apperr.Is(err, apperr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

// handleTokenError collapses every redemption failure into one
// indistinct message so an unknown token and an expired one look
// alike to outside callers.
func handleTokenError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("token redemption failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case apperr.Is(err, apperr.ErrNotFound),
		apperr.Is(err, apperr.ErrExpired),
		apperr.Is(err, apperr.ErrForbidden),
		apperr.Is(err, apperr.ErrInvalid):
		response.Error(c, errcode.ErrNotFound, "invalid or expired token")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
