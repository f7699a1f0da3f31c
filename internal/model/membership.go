package model

// Membership is a durable, role-scoped grant on a storyteller's posts.
// AcceptedAt and RevokedAt are write-once; zero means "not yet". TokenHash
// holds the invite token digest and is cleared on acceptance.
type Membership struct {
	ID             string `json:"id"`
	StorytellerID  string `json:"storyteller_id"`
	UserEmail      string `json:"user_email"`
	Role           string `json:"role"`
	TokenHash      string `json:"-"`
	TokenExpiresAt int64  `json:"token_expires_at"`
	InvitedAt      int64  `json:"invited_at"`
	AcceptedAt     int64  `json:"accepted_at"`
	RevokedAt      int64  `json:"revoked_at"`
}
