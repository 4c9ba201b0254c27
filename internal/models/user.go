package models

import (
	"strings"
	"time"
)

// UserRecord is a directory entry. It is created on the first authenticated
// session and merged on every later one.
type UserRecord struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	NormalizedEmail string    `json:"normalizedEmail"`
	DisplayName     string    `json:"displayName,omitempty"`
	PhotoURL        string    `json:"photoURL,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NormalizeEmail lowercases and trims an address for exact matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Info returns the denormalized snapshot stored on conversations.
func (u *UserRecord) Info() MemberInfo {
	return MemberInfo{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}
