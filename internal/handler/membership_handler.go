package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/mlevan/hearth/internal/pkg/errcode"
	"github.com/mlevan/hearth/internal/pkg/response"
	"github.com/mlevan/hearth/internal/service"
)

type MembershipHandler struct {
	grants *service.GrantService
	mail   service.EmailSender
}

func NewMembershipHandler(grants *service.GrantService, mail service.EmailSender) *MembershipHandler {
	return &MembershipHandler{grants: grants, mail: mail}
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *MembershipHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	role := req.Role
	if role == "" {
		role = "viewer"
	}
	membership, inviteURL, err := h.grants.Invite(c.Request.Context(), getUserID(c), req.Email, role)
	if err != nil {
		handleError(c, err)
		return
	}
	if h.mail != nil {
		subject := "You have been invited to follow a storyteller"
		body := fmt.Sprintf("You have been invited as a %s.\n\nOpen this link to accept:\n%s\n\nThe link expires in 7 days.", membership.Role, inviteURL)
		if err := h.mail.Send(membership.UserEmail, subject, body); err != nil {
			logutil.GetLogger(c.Request.Context()).Warn("invite mail not sent",
				zap.String("membership_id", membership.ID),
				zap.Error(err),
			)
		}
	}
	response.Success(c, gin.H{"membership": membership, "invite_url": inviteURL})
}

func (h *MembershipHandler) List(c *gin.Context) {
	items, err := h.grants.ListMemberships(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *MembershipHandler) Revoke(c *gin.Context) {
	if err := h.grants.RevokeMembership(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

// PublicAccept redeems an invite token. It is unauthenticated and rate
// limited; every failure mode reads the same from the outside.
func (h *MembershipHandler) PublicAccept(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.Param("token")
	}
	membership, err := h.grants.AcceptInvite(c.Request.Context(), token)
	if err != nil {
		handleTokenError(c, err)
		return
	}
	response.Success(c, gin.H{"membership": membership})
}
