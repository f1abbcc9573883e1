package service

import (
	"context"

	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// PageRequest is a 1-based page number and size.
type PageRequest struct {
	Page     int
	PageSize int
}

// normalize clamps the request and returns limit and offset.
func (p PageRequest) normalize() (PageRequest, int, int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p, p.PageSize, (p.Page - 1) * p.PageSize
}

func newPage[T any](items []T, total int64, req PageRequest) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.PageSize > 0 {
		pages = int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	}
	return &Page[T]{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: pages,
	}
}

// EntryView is an entry with its author and reviewer resolved. Liked and
// Favorited are set only for an authenticated viewer.
type EntryView struct {
	*models.Entry
	Author    *models.UserSummary `json:"author"`
	Reviewer  *models.UserSummary `json:"reviewer,omitempty"`
	Liked     *bool               `json:"liked,omitempty"`
	Favorited *bool               `json:"favorited,omitempty"`
}

// NearbyEntryView adds the distance in meters from the query point. Distance
// is null for entries without coordinates.
type NearbyEntryView struct {
	*EntryView
	Distance *float64 `json:"distance"`
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	*models.Comment
	Author *models.UserSummary `json:"author"`
	Liked  *bool               `json:"liked,omitempty"`
}

// CommentThread is a top-level comment with all of its replies, oldest first.
type CommentThread struct {
	*CommentView
	Replies []*CommentView `json:"replies"`
}

// LikeResult is the state after toggling a like.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

// FavoriteResult is the state after toggling a favorite.
type FavoriteResult struct {
	Favorited     bool  `json:"favorited"`
	FavoriteCount int64 `json:"favorite_count"`
}

// entryViews resolves authors and reviewers with a single batch lookup.
func entryViews(ctx context.Context, users repository.UserRepository, entries []*models.Entry) ([]*EntryView, error) {
	ids := make([]uint, 0, len(entries)*2)
	for _, e := range entries {
		ids = append(ids, e.AuthorID)
		if e.ReviewedBy != nil {
			ids = append(ids, *e.ReviewedBy)
		}
	}
	byID, err := users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*EntryView, 0, len(entries))
	for _, e := range entries {
		v := &EntryView{Entry: e, Author: byID[e.AuthorID].Summary()}
		if e.ReviewedBy != nil {
			v.Reviewer = byID[*e.ReviewedBy].Summary()
		}
		views = append(views, v)
	}
	return views, nil
}

func entryView(ctx context.Context, users repository.UserRepository, entry *models.Entry) (*EntryView, error) {
	views, err := entryViews(ctx, users, []*models.Entry{entry})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func commentViews(ctx context.Context, users repository.UserRepository, comments []*models.Comment) ([]*CommentView, error) {
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	byID, err := users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]*CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, &CommentView{Comment: c, Author: byID[c.UserID].Summary()})
	}
	return views, nil
}

func boolPtr(b bool) *bool {
	return &b
}
