package service

import (
	"context"

	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/observability"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
)

// EngagementService toggles likes and favorites on approved entries.
type EngagementService struct {
	entries    repository.EntryRepository
	engagement repository.EngagementRepository
	users      repository.UserRepository
}

func NewEngagementService(
	entries repository.EntryRepository,
	engagement repository.EngagementRepository,
	users repository.UserRepository,
) *EngagementService {
	return &EngagementService{entries: entries, engagement: engagement, users: users}
}

// mark is one kind of per-user flag on a counted target.
type mark struct {
	exists  func() (bool, error)
	add     func() (int64, error)
	remove  func() (bool, int64, error)
	current func() (int64, error)
}

// toggle flips the mark and returns the resulting state and counter. An add
// that loses a race to a concurrent add converges to the set state without
// counting twice.
func toggle(m mark) (bool, int64, error) {
	set, err := m.exists()
	if err != nil {
		return false, 0, err
	}

	if set {
		_, count, err := m.remove()
		if err != nil {
			return false, 0, err
		}
		return false, count, nil
	}

	count, err := m.add()
	if models.IsCode(err, models.CodeConstraintViolation) {
		count, err = m.current()
		if err != nil {
			return false, 0, err
		}
		return true, count, nil
	}
	if err != nil {
		return false, 0, err
	}
	return true, count, nil
}

func (s *EngagementService) approvedEntry(ctx context.Context, entryID uint) (*models.Entry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.IsApproved() {
		return nil, models.NewInvalidStateError("Entry is not published")
	}
	return entry, nil
}

// ToggleLike likes the entry, or removes the like if present.
func (s *EngagementService) ToggleLike(ctx context.Context, entryID, userID uint) (*LikeResult, error) {
	if _, err := s.approvedEntry(ctx, entryID); err != nil {
		return nil, err
	}

	liked, count, err := toggle(mark{
		exists: func() (bool, error) { return s.engagement.IsLiked(ctx, entryID, userID) },
		add:    func() (int64, error) { return s.engagement.AddLike(ctx, entryID, userID) },
		remove: func() (bool, int64, error) { return s.engagement.RemoveLike(ctx, entryID, userID) },
		current: func() (int64, error) {
			e, err := s.entries.GetByID(ctx, entryID)
			if err != nil {
				return 0, err
			}
			return e.LikeCount, nil
		},
	})
	if err != nil {
		return nil, err
	}

	observability.RecordToggle("like", liked)
	return &LikeResult{Liked: liked, LikeCount: count}, nil
}

// ToggleFavorite favorites the entry, or removes the favorite if present.
func (s *EngagementService) ToggleFavorite(ctx context.Context, entryID, userID uint) (*FavoriteResult, error) {
	if _, err := s.approvedEntry(ctx, entryID); err != nil {
		return nil, err
	}

	favorited, count, err := toggle(mark{
		exists: func() (bool, error) { return s.engagement.IsFavorited(ctx, entryID, userID) },
		add:    func() (int64, error) { return s.engagement.AddFavorite(ctx, entryID, userID) },
		remove: func() (bool, int64, error) { return s.engagement.RemoveFavorite(ctx, entryID, userID) },
		current: func() (int64, error) {
			e, err := s.entries.GetByID(ctx, entryID)
			if err != nil {
				return 0, err
			}
			return e.FavoriteCount, nil
		},
	})
	if err != nil {
		return nil, err
	}

	observability.RecordToggle("favorite", favorited)
	return &FavoriteResult{Favorited: favorited, FavoriteCount: count}, nil
}

func (s *EngagementService) IsLiked(ctx context.Context, entryID, userID uint) (bool, error) {
	return s.engagement.IsLiked(ctx, entryID, userID)
}

func (s *EngagementService) IsFavorited(ctx context.Context, entryID, userID uint) (bool, error) {
	return s.engagement.IsFavorited(ctx, entryID, userID)
}

// Annotate sets Liked and Favorited on view for an authenticated viewer.
func (s *EngagementService) Annotate(ctx context.Context, view *EntryView, viewerID uint) error {
	if view == nil || viewerID == 0 {
		return nil
	}
	liked, err := s.engagement.IsLiked(ctx, view.ID, viewerID)
	if err != nil {
		return err
	}
	favorited, err := s.engagement.IsFavorited(ctx, view.ID, viewerID)
	if err != nil {
		return err
	}
	view.Liked = boolPtr(liked)
	view.Favorited = boolPtr(favorited)
	return nil
}

// ListFavorites pages the user's favorited entries that are still published.
func (s *EngagementService) ListFavorites(ctx context.Context, userID uint, req PageRequest) (*Page[*EntryView], error) {
	req, limit, offset := req.normalize()
	entries, total, err := s.engagement.ListFavorites(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	views, err := entryViews(ctx, s.users, entries)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		v.Favorited = boolPtr(true)
	}
	return newPage(views, total, req), nil
}
