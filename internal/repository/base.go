package repository

import (
	"errors"
	"strings"

	"github.com/traveldairy2025nju/td-backend/internal/database"
	"github.com/traveldairy2025nju/td-backend/internal/models"

	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a lower-cased LIKE pattern for a substring match.
// Callers pair it with LOWER(column) and ESCAPE '\'.
func containsPattern(keyword string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(keyword))) + "%"
}

// storageError maps a driver error onto the application error taxonomy.
func storageError(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	if database.IsUniqueViolation(err) {
		return models.NewConstraintError(resource+" already exists", err)
	}
	return models.NewInternalError(err)
}

// clampPage converts limit/offset into safe values.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
