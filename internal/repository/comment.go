package repository

import (
	"context"

	"github.com/traveldairy2025nju/td-backend/internal/cache"
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListTopLevel(ctx context.Context, entryID uint, limit, offset int) ([]*models.Comment, int64, error)
	ListReplies(ctx context.Context, parentIDs []uint) ([]*models.Comment, error)
	DeleteCascade(ctx context.Context, comment *models.Comment) (int64, error)
	AddLike(ctx context.Context, commentID, userID uint) (int64, error)
	RemoveLike(ctx context.Context, commentID, userID uint) (bool, int64, error)
	IsLiked(ctx context.Context, commentID, userID uint) (bool, error)
	LikedIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error)
}

type commentRepository struct {
	db *gorm.DB
}

var commentLog = observability.NewRepoLogger("comments")

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment and bumps the entry's comment_count in one transaction.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Entry{}).
			Where("id = ?", comment.EntryID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error
	})
	if err != nil {
		return storageError(err, "Comment", comment.EntryID)
	}
	cache.InvalidateEntry(ctx, comment.EntryID)
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, storageError(err, "Comment", id)
	}
	return &comment, nil
}

// ListTopLevel pages top-level comments newest first. The total counts
// top-level comments only.
func (r *commentRepository) ListTopLevel(ctx context.Context, entryID uint, limit, offset int) ([]*models.Comment, int64, error) {
	limit, offset = clampPage(limit, offset)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("entry_id = ? AND parent_id IS NULL", entryID).
		Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("entry_id = ? AND parent_id IS NULL", entryID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return comments, total, nil
}

// ListReplies returns every reply to the given parents, oldest first.
func (r *commentRepository) ListReplies(ctx context.Context, parentIDs []uint) ([]*models.Comment, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var replies []*models.Comment
	err := r.db.WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("created_at ASC, id ASC").
		Find(&replies).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return replies, nil
}

// DeleteCascade removes the comment, its replies and all their likes, then
// lowers the entry's comment_count by the number of comments removed.
func (r *commentRepository) DeleteCascade(ctx context.Context, comment *models.Comment) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		replyIDs := tx.Model(&models.Comment{}).Select("id").Where("parent_id = ?", comment.ID)
		if err := tx.Where("comment_id = ? OR comment_id IN (?)", comment.ID, replyIDs).
			Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}

		res := tx.Where("parent_id = ?", comment.ID).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected

		res = tx.Delete(&models.Comment{}, comment.ID)
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected

		if removed == 0 {
			return nil
		}
		return tx.Model(&models.Entry{}).
			Where("id = ?", comment.EntryID).
			UpdateColumn("comment_count", gorm.Expr(
				"CASE WHEN comment_count >= ? THEN comment_count - ? ELSE 0 END", removed, removed,
			)).Error
	})
	if err != nil {
		commentLog.LogError(ctx, err, "delete")
		return 0, models.NewInternalError(err)
	}
	if removed > 0 {
		cache.InvalidateEntry(ctx, comment.EntryID)
		commentLog.LogDelete(ctx, map[string]interface{}{"id": comment.ID, "entry_id": comment.EntryID, "removed": removed})
	}
	return removed, nil
}

func (r *commentRepository) AddLike(ctx context.Context, commentID, userID uint) (int64, error) {
	return addMark(ctx, r.db, &models.CommentLike{CommentID: commentID, UserID: userID}, &models.Comment{}, "like_count", commentID)
}

func (r *commentRepository) RemoveLike(ctx context.Context, commentID, userID uint) (bool, int64, error) {
	return removeMark(ctx, r.db, &models.CommentLike{}, "comment_id", &models.Comment{}, "like_count", commentID, userID)
}

func (r *commentRepository) IsLiked(ctx context.Context, commentID, userID uint) (bool, error) {
	return exists(ctx, r.db, &models.CommentLike{}, "comment_id", commentID, userID)
}

// LikedIDs reports which of commentIDs the user has liked, in one query.
func (r *commentRepository) LikedIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(commentIDs))
	if userID == 0 || len(commentIDs) == 0 {
		return out, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &liked).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}
