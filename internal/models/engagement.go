package models

import "time"

// Like records that a user liked an entry.
// The combination of EntryID and UserID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EntryID   uint      `gorm:"not null;uniqueIndex:idx_likes_entry_user" json:"entry_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_entry_user;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Favorite records that a user bookmarked an entry.
// The combination of EntryID and UserID must be unique.
type Favorite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EntryID   uint      `gorm:"not null;uniqueIndex:idx_favorites_entry_user" json:"entry_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorites_entry_user;index" json:"user_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
