package repository

import (
	"context"
	"strings"

	"github.com/traveldairy2025nju/td-backend/internal/cache"
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/observability"

	"gorm.io/gorm"
)

// EntryFilter narrows entry listings. Zero values mean "any".
type EntryFilter struct {
	Status          models.EntryStatus
	AuthorID        uint
	Keyword         string
	RequireLocation bool
}

// editableColumns are written by Update. Counters are owned by the ledger
// and the comment tree and are never overwritten from a loaded copy.
var editableColumns = []string{
	"title", "content", "images", "video",
	"location_name", "location_address", "location_latitude", "location_longitude",
	"status", "reject_reason", "approved_at", "reviewed_by", "reviewed_at",
}

// EntryRepository defines persistence operations for diary entries.
type EntryRepository interface {
	Create(ctx context.Context, entry *models.Entry) error
	GetByID(ctx context.Context, id uint) (*models.Entry, error)
	Update(ctx context.Context, entry *models.Entry) error
	TransitionFromPending(ctx context.Context, id uint, changes map[string]interface{}) (*models.Entry, error)
	List(ctx context.Context, filter EntryFilter, limit, offset int) ([]*models.Entry, int64, error)
	ListAll(ctx context.Context, filter EntryFilter) ([]*models.Entry, error)
	SearchApproved(ctx context.Context, keyword string, limit, offset int) ([]*models.Entry, int64, error)
	DeleteCascade(ctx context.Context, id uint) error
}

type entryRepository struct {
	db *gorm.DB
}

var entryLog = observability.NewRepoLogger("entries")

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) Create(ctx context.Context, entry *models.Entry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *entryRepository) GetByID(ctx context.Context, id uint) (*models.Entry, error) {
	var entry models.Entry
	err := cache.Aside(ctx, cache.EntryKey(id), &entry, cache.EntryTTL, func() error {
		return storageError(r.db.WithContext(ctx).First(&entry, id).Error, "Entry", id)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// getFresh bypasses the cache; used right after a write.
func (r *entryRepository) getFresh(ctx context.Context, id uint) (*models.Entry, error) {
	var entry models.Entry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, storageError(err, "Entry", id)
	}
	return &entry, nil
}

func (r *entryRepository) Update(ctx context.Context, entry *models.Entry) error {
	res := r.db.WithContext(ctx).Model(entry).Select(editableColumns).Updates(entry)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Entry", entry.ID)
	}
	cache.InvalidateEntry(ctx, entry.ID)
	return nil
}

// TransitionFromPending applies changes only while the entry is still
// pending. Of two concurrent decisions exactly one wins; the loser sees
// INVALID_STATE.
func (r *entryRepository) TransitionFromPending(ctx context.Context, id uint, changes map[string]interface{}) (*models.Entry, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Entry{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(changes)
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Entry{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		if count == 0 {
			return nil, models.NewNotFoundError("Entry", id)
		}
		return nil, models.NewInvalidStateError("Entry is not pending review")
	}

	cache.InvalidateEntry(ctx, id)
	entryLog.LogUpdate(ctx, map[string]interface{}{"id": id, "status": changes["status"]})
	return r.getFresh(ctx, id)
}

func applyEntryFilter(db *gorm.DB, f EntryFilter) *gorm.DB {
	if f.Status != "" {
		db = db.Where("entries.status = ?", f.Status)
	}
	if f.AuthorID != 0 {
		db = db.Where("entries.author_id = ?", f.AuthorID)
	}
	if strings.TrimSpace(f.Keyword) != "" {
		p := containsPattern(f.Keyword)
		db = db.Where(`(LOWER(entries.title) LIKE ? ESCAPE '\' OR LOWER(entries.content) LIKE ? ESCAPE '\')`, p, p)
	}
	if f.RequireLocation {
		db = db.Where("entries.location_latitude IS NOT NULL AND entries.location_longitude IS NOT NULL")
	}
	return db
}

func (r *entryRepository) List(ctx context.Context, filter EntryFilter, limit, offset int) ([]*models.Entry, int64, error) {
	limit, offset = clampPage(limit, offset)

	var total int64
	if err := applyEntryFilter(r.db.WithContext(ctx).Model(&models.Entry{}), filter).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var entries []*models.Entry
	err := applyEntryFilter(r.db.WithContext(ctx), filter).
		Order("entries.created_at DESC, entries.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return entries, total, nil
}

// ListAll returns every matching entry, newest first, for in-process ranking.
func (r *entryRepository) ListAll(ctx context.Context, filter EntryFilter) ([]*models.Entry, error) {
	var entries []*models.Entry
	err := applyEntryFilter(r.db.WithContext(ctx), filter).
		Order("entries.created_at DESC, entries.id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

// SearchApproved matches the keyword against title, content and the author's nickname.
func (r *entryRepository) SearchApproved(ctx context.Context, keyword string, limit, offset int) ([]*models.Entry, int64, error) {
	limit, offset = clampPage(limit, offset)
	p := containsPattern(keyword)

	scope := func(db *gorm.DB) *gorm.DB {
		return db.Joins("LEFT JOIN users ON users.id = entries.author_id").
			Where("entries.status = ?", models.StatusApproved).
			Where(`(LOWER(entries.title) LIKE ? ESCAPE '\' OR LOWER(entries.content) LIKE ? ESCAPE '\' OR LOWER(users.nickname) LIKE ? ESCAPE '\')`, p, p, p)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Entry{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var entries []*models.Entry
	err := r.db.WithContext(ctx).Model(&models.Entry{}).Scopes(scope).
		Select("entries.*").
		Order("entries.created_at DESC, entries.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return entries, total, nil
}

// DeleteCascade removes the entry and everything hanging off it, children
// first. Re-running after a partial failure is safe.
func (r *entryRepository) DeleteCascade(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("entry_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Entry{}, id).Error
	})
	if err != nil {
		entryLog.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	cache.InvalidateEntry(ctx, id)
	entryLog.LogDelete(ctx, map[string]interface{}{"id": id})
	return nil
}
