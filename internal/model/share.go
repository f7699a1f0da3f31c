package model

// Share is an anonymous, token-gated read grant on one post. Depending on
// configuration Token holds either the raw secret or its digest. Shares are
// never physically deleted; revocation sets RevokedAt.
type Share struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	Token     string `json:"-"`
	ExpiresAt int64  `json:"expires_at"`
	RevokedAt int64  `json:"revoked_at"`
	Ctime     int64  `json:"ctime"`
}
