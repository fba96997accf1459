package models

// UserSummary is returned by register and /auth/me.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// TokenResult is returned by login.
type TokenResult struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}
