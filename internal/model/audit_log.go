package model

const (
	AuditTargetMembership = "membership"
	AuditTargetShare      = "share"
)

const (
	AuditActionInviteCreated     = "invite_created"
	AuditActionInviteAccepted    = "invite_accepted"
	AuditActionMembershipRevoked = "membership_revoked"
	AuditActionShareCreated      = "share_created"
	AuditActionShareRevoked      = "share_revoked"
)

// AuditLog is an append-only fact about a grant lifecycle transition.
// Metadata is a JSON object snapshot.
type AuditLog struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Metadata   string `json:"metadata"`
	Ctime      int64  `json:"ctime"`
}
