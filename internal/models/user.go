// Package models contains data structures for the application's domain models.
package models

import "time"

// Role is the privilege level of a user.
type Role string

const (
	RoleUser     Role = "user"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// CanModerate reports whether the role may approve or reject entries.
func (r Role) CanModerate() bool {
	return r == RoleReviewer || r == RoleAdmin
}

// User is a read-only view of the identity directory. Accounts are issued by
// the external auth system; this service only resolves display data and roles.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Nickname  string    `gorm:"size:64;index" json:"nickname"`
	Avatar    string    `json:"avatar"`
	Role      Role      `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSummary is the public projection of a user attached to entries and comments.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// Summary projects the user onto its public fields.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Nickname: u.Nickname,
		Avatar:   u.Avatar,
	}
}
