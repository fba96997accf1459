package models

import (
	"time"

	id "docucred/pkg/domain"
)

// User is an account. Usernames are unique and compared exactly.
type User struct {
	ID           id.UserID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Summary is the public view of a user; it never carries the hash.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID.String(), Username: u.Username}
}
