package models

import "time"

// EntryStatus is the moderation state of a diary entry.
type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusApproved EntryStatus = "approved"
	StatusRejected EntryStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Location is an optional place attached to an entry. Coordinates are
// nullable independently of the name so an entry can carry a label only.
type Location struct {
	Name      string   `gorm:"size:255" json:"name,omitempty"`
	Address   string   `gorm:"size:512" json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// IsZero reports whether no location field is set.
func (l Location) IsZero() bool {
	return l.Name == "" && l.Address == "" && l.Latitude == nil && l.Longitude == nil
}

// Entry is a user-authored travel diary post subject to moderation.
type Entry struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Title         string      `gorm:"size:255;not null" json:"title"`
	Content       string      `gorm:"type:text;not null" json:"content"`
	Images        []string    `gorm:"serializer:json;type:text;not null" json:"images"`
	Video         *string     `json:"video,omitempty"`
	Location      Location    `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	AuthorID      uint        `gorm:"not null;index" json:"author_id"`
	Status        EntryStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	RejectReason  *string     `gorm:"type:text" json:"reject_reason,omitempty"`
	ApprovedAt    *time.Time  `json:"approved_at,omitempty"`
	ReviewedBy    *uint       `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time  `json:"reviewed_at,omitempty"`
	LikeCount     int64       `gorm:"not null;default:0" json:"like_count"`
	CommentCount  int64       `gorm:"not null;default:0" json:"comment_count"`
	FavoriteCount int64       `gorm:"not null;default:0" json:"favorite_count"`
	CreatedAt     time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// IsApproved reports whether the entry is publicly visible.
func (e *Entry) IsApproved() bool {
	return e.Status == StatusApproved
}
