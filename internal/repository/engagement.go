package repository

import (
	"context"

	"github.com/traveldairy2025nju/td-backend/internal/cache"
	"github.com/traveldairy2025nju/td-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementRepository persists likes and favorites together with the
// denormalized counters on entries.
type EngagementRepository interface {
	AddLike(ctx context.Context, entryID, userID uint) (int64, error)
	RemoveLike(ctx context.Context, entryID, userID uint) (bool, int64, error)
	IsLiked(ctx context.Context, entryID, userID uint) (bool, error)
	AddFavorite(ctx context.Context, entryID, userID uint) (int64, error)
	RemoveFavorite(ctx context.Context, entryID, userID uint) (bool, int64, error)
	IsFavorited(ctx context.Context, entryID, userID uint) (bool, error)
	ListFavorites(ctx context.Context, userID uint, limit, offset int) ([]*models.Entry, int64, error)
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository creates a new EngagementRepository
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

// addMark inserts row and bumps counter on the target row by one. A row
// that already exists yields CONSTRAINT_VIOLATION and leaves the counter alone.
func addMark(ctx context.Context, db *gorm.DB, row, target interface{}, counter string, targetID uint) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConstraintError("Already recorded", nil)
		}
		if err := tx.Model(target).
			Where("id = ?", targetID).
			UpdateColumn(counter, gorm.Expr(counter+" + ?", 1)).Error; err != nil {
			return err
		}
		return tx.Model(target).Select(counter).Where("id = ?", targetID).Scan(&count).Error
	})
	if err != nil {
		return 0, storageError(err, "Engagement", targetID)
	}
	return count, nil
}

// removeMark deletes the (target, user) row of model and decrements counter
// only when a row was actually removed. The counter never goes below zero.
func removeMark(ctx context.Context, db *gorm.DB, model interface{}, keyColumn string, target interface{}, counter string, targetID, userID uint) (bool, int64, error) {
	var removed bool
	var count int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(keyColumn+" = ? AND user_id = ?", targetID, userID).Delete(model)
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		if removed {
			if err := tx.Model(target).
				Where("id = ? AND "+counter+" > 0", targetID).
				UpdateColumn(counter, gorm.Expr(counter+" - ?", 1)).Error; err != nil {
				return err
			}
		}
		return tx.Model(target).Select(counter).Where("id = ?", targetID).Scan(&count).Error
	})
	if err != nil {
		return false, 0, storageError(err, "Engagement", targetID)
	}
	return removed, count, nil
}

func exists(ctx context.Context, db *gorm.DB, model interface{}, keyColumn string, targetID, userID uint) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(model).
		Where(keyColumn+" = ? AND user_id = ?", targetID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *engagementRepository) AddLike(ctx context.Context, entryID, userID uint) (int64, error) {
	count, err := addMark(ctx, r.db, &models.Like{EntryID: entryID, UserID: userID}, &models.Entry{}, "like_count", entryID)
	if err == nil {
		cache.InvalidateEntry(ctx, entryID)
	}
	return count, err
}

func (r *engagementRepository) RemoveLike(ctx context.Context, entryID, userID uint) (bool, int64, error) {
	removed, count, err := removeMark(ctx, r.db, &models.Like{}, "entry_id", &models.Entry{}, "like_count", entryID, userID)
	if removed {
		cache.InvalidateEntry(ctx, entryID)
	}
	return removed, count, err
}

func (r *engagementRepository) IsLiked(ctx context.Context, entryID, userID uint) (bool, error) {
	return exists(ctx, r.db, &models.Like{}, "entry_id", entryID, userID)
}

func (r *engagementRepository) AddFavorite(ctx context.Context, entryID, userID uint) (int64, error) {
	count, err := addMark(ctx, r.db, &models.Favorite{EntryID: entryID, UserID: userID}, &models.Entry{}, "favorite_count", entryID)
	if err == nil {
		cache.InvalidateEntry(ctx, entryID)
	}
	return count, err
}

func (r *engagementRepository) RemoveFavorite(ctx context.Context, entryID, userID uint) (bool, int64, error) {
	removed, count, err := removeMark(ctx, r.db, &models.Favorite{}, "entry_id", &models.Entry{}, "favorite_count", entryID, userID)
	if removed {
		cache.InvalidateEntry(ctx, entryID)
	}
	return removed, count, err
}

func (r *engagementRepository) IsFavorited(ctx context.Context, entryID, userID uint) (bool, error) {
	return exists(ctx, r.db, &models.Favorite{}, "entry_id", entryID, userID)
}

// ListFavorites returns the user's favorited entries that are still
// approved, most recently favorited first. Favorites pointing at deleted
// or unpublished entries are skipped.
func (r *engagementRepository) ListFavorites(ctx context.Context, userID uint, limit, offset int) ([]*models.Entry, int64, error) {
	limit, offset = clampPage(limit, offset)

	scope := func(db *gorm.DB) *gorm.DB {
		return db.Joins("JOIN favorites ON favorites.entry_id = entries.id").
			Where("favorites.user_id = ? AND entries.status = ?", userID, models.StatusApproved)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Entry{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var entries []*models.Entry
	err := r.db.WithContext(ctx).Model(&models.Entry{}).Scopes(scope).
		Select("entries.*").
		Order("favorites.created_at DESC, favorites.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return entries, total, nil
}
