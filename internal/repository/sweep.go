package repository

import (
	"context"

	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/observability"

	"gorm.io/gorm"
)

// SweepResult reports rows removed per table.
type SweepResult map[string]int64

// Total sums removed rows across tables.
func (s SweepResult) Total() int64 {
	var n int64
	for _, v := range s {
		n += v
	}
	return n
}

// MaintenanceRepository repairs state left behind by interrupted cascades.
type MaintenanceRepository interface {
	SweepOrphans(ctx context.Context) (SweepResult, error)
	ReconcileCounters(ctx context.Context) (int64, error)
}

type maintenanceRepository struct {
	db *gorm.DB
}

// NewMaintenanceRepository creates a MaintenanceRepository.
func NewMaintenanceRepository(db *gorm.DB) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

// orphanSweeps run in order; comments go before comment_likes so likes of
// freshly removed comments are caught in the same pass.
var orphanSweeps = []struct {
	table string
	model interface{}
	where string
}{
	{"comments", &models.Comment{}, "entry_id NOT IN (SELECT id FROM entries)"},
	{"replies", &models.Comment{}, "parent_id IS NOT NULL AND parent_id NOT IN (SELECT id FROM comments WHERE parent_id IS NULL)"},
	{"comment_likes", &models.CommentLike{}, "comment_id NOT IN (SELECT id FROM comments)"},
	{"likes", &models.Like{}, "entry_id NOT IN (SELECT id FROM entries)"},
	{"favorites", &models.Favorite{}, "entry_id NOT IN (SELECT id FROM entries)"},
}

// SweepOrphans deletes ledger and comment rows whose parent row is gone.
func (r *maintenanceRepository) SweepOrphans(ctx context.Context) (SweepResult, error) {
	result := make(SweepResult, len(orphanSweeps))
	for _, sweep := range orphanSweeps {
		res := r.db.WithContext(ctx).Where(sweep.where).Delete(sweep.model)
		if res.Error != nil {
			return result, models.NewInternalError(res.Error)
		}
		result[sweep.table] = res.RowsAffected
		if res.RowsAffected > 0 {
			observability.NewRepoLogger(sweep.table).LogDelete(ctx, map[string]interface{}{"orphans": res.RowsAffected})
		}
	}
	return result, nil
}

// ReconcileCounters recomputes the denormalized counters from live rows and
// returns the number of entries touched.
func (r *maintenanceRepository) ReconcileCounters(ctx context.Context) (int64, error) {
	var touched int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`UPDATE entries SET
			like_count = (SELECT COUNT(*) FROM likes WHERE likes.entry_id = entries.id),
			favorite_count = (SELECT COUNT(*) FROM favorites WHERE favorites.entry_id = entries.id),
			comment_count = (SELECT COUNT(*) FROM comments WHERE comments.entry_id = entries.id)
		WHERE like_count <> (SELECT COUNT(*) FROM likes WHERE likes.entry_id = entries.id)
			OR favorite_count <> (SELECT COUNT(*) FROM favorites WHERE favorites.entry_id = entries.id)
			OR comment_count <> (SELECT COUNT(*) FROM comments WHERE comments.entry_id = entries.id)`)
		if res.Error != nil {
			return res.Error
		}
		touched = res.RowsAffected

		return tx.Exec(`UPDATE comments SET
			like_count = (SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id)
		WHERE like_count <> (SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id)`).Error
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return touched, nil
}
