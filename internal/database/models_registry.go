package database

import "github.com/traveldairy2025nju/td-backend/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Child tables follow their parents so AutoMigrate creates them in order.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Entry{},
		&models.Like{},
		&models.Favorite{},
		&models.Comment{},
		&models.CommentLike{},
	}
}
