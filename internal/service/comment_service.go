package service

import (
	"context"
	"log/slog"

	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/observability"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
	"github.com/traveldairy2025nju/td-backend/internal/validation"
)

type CommentService struct {
	comments repository.CommentRepository
	entries  repository.EntryRepository
	users    repository.UserRepository
	isAdmin  func(ctx context.Context, userID uint) (bool, error)
	canView  func(ctx context.Context, userID uint) (bool, error)
}

type CreateCommentInput struct {
	EntryID  uint
	UserID   uint
	Content  string
	ParentID *uint
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	comments repository.CommentRepository,
	entries repository.EntryRepository,
	users repository.UserRepository,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
	canView func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{
		comments: comments,
		entries:  entries,
		users:    users,
		isAdmin:  isAdmin,
		canView:  canView,
	}
}

// AddComment adds a top-level comment or a reply. A reply to a reply is
// attached to the top-level comment of that thread.
func (s *CommentService) AddComment(ctx context.Context, in CreateCommentInput) (*CommentView, error) {
	entry, err := s.entries.GetByID(ctx, in.EntryID)
	if err != nil {
		return nil, err
	}
	if !entry.IsApproved() {
		return nil, models.NewInvalidStateError("Entry is not published")
	}

	content, err := validation.ValidateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		EntryID: in.EntryID,
		UserID:  in.UserID,
		Content: content,
	}

	if in.ParentID != nil {
		parent, err := s.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.EntryID != in.EntryID {
			return nil, models.NewValidationError("parent comment belongs to another entry")
		}
		rootID := parent.ID
		if parent.ParentID != nil {
			rootID = *parent.ParentID
		}
		comment.ParentID = &rootID
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	observability.CommentsWritten.WithLabelValues("create").Inc()

	views, err := commentViews(ctx, s.users, []*models.Comment{comment})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ListComments pages the top-level comments of an entry, newest first, each
// with all of its replies oldest first. When viewerID is set every comment
// carries the viewer's like state. Comments of an entry the viewer may not
// see are reported as a missing entry.
func (s *CommentService) ListComments(ctx context.Context, entryID, viewerID uint, req PageRequest) (*Page[*CommentThread], error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	visible, err := visibleTo(ctx, entry, viewerID, s.canView)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, models.NewNotFoundError("Entry", entryID)
	}

	req, limit, offset := req.normalize()
	top, total, err := s.comments.ListTopLevel(ctx, entryID, limit, offset)
	if err != nil {
		return nil, err
	}

	parentIDs := make([]uint, 0, len(top))
	for _, c := range top {
		parentIDs = append(parentIDs, c.ID)
	}
	replies, err := s.comments.ListReplies(ctx, parentIDs)
	if err != nil {
		return nil, err
	}

	all := make([]*models.Comment, 0, len(top)+len(replies))
	all = append(all, top...)
	all = append(all, replies...)
	views, err := commentViews(ctx, s.users, all)
	if err != nil {
		return nil, err
	}

	if viewerID != 0 {
		ids := make([]uint, 0, len(all))
		for _, c := range all {
			ids = append(ids, c.ID)
		}
		liked, err := s.comments.LikedIDs(ctx, viewerID, ids)
		if err != nil {
			return nil, err
		}
		for _, v := range views {
			v.Liked = boolPtr(liked[v.ID])
		}
	}

	threads := make([]*CommentThread, 0, len(top))
	byParent := make(map[uint]*CommentThread, len(top))
	for _, v := range views[:len(top)] {
		t := &CommentThread{CommentView: v, Replies: []*CommentView{}}
		threads = append(threads, t)
		byParent[v.ID] = t
	}
	for _, v := range views[len(top):] {
		if t, ok := byParent[*v.ParentID]; ok {
			t.Replies = append(t.Replies, v)
		}
	}

	return newPage(threads, total, req), nil
}

// RemoveComment deletes a comment with its replies and likes. Only the
// comment's author or an admin may remove it.
func (s *CommentService) RemoveComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}

	if comment.UserID != in.UserID {
		allowed, err := check(ctx, s.isAdmin, in.UserID)
		if err != nil {
			return err
		}
		if !allowed {
			return models.NewForbiddenError("You can only delete your own comments")
		}
	}

	removed, err := s.comments.DeleteCascade(ctx, comment)
	if err != nil {
		return err
	}
	observability.CommentsWritten.WithLabelValues("delete").Add(float64(removed))
	slog.InfoContext(ctx, "comment removed",
		"comment_id", comment.ID, "entry_id", comment.EntryID, "removed", removed, "by", in.UserID)
	return nil
}

// ToggleCommentLike likes the comment, or removes the like if present.
func (s *CommentService) ToggleCommentLike(ctx context.Context, commentID, userID uint) (*LikeResult, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	entry, err := s.entries.GetByID(ctx, comment.EntryID)
	if err != nil {
		return nil, err
	}
	if !entry.IsApproved() {
		return nil, models.NewInvalidStateError("Entry is not published")
	}

	liked, count, err := toggle(mark{
		exists: func() (bool, error) { return s.comments.IsLiked(ctx, commentID, userID) },
		add:    func() (int64, error) { return s.comments.AddLike(ctx, commentID, userID) },
		remove: func() (bool, int64, error) { return s.comments.RemoveLike(ctx, commentID, userID) },
		current: func() (int64, error) {
			c, err := s.comments.GetByID(ctx, commentID)
			if err != nil {
				return 0, err
			}
			return c.LikeCount, nil
		},
	})
	if err != nil {
		return nil, err
	}

	observability.RecordToggle("comment_like", liked)
	return &LikeResult{Liked: liked, LikeCount: count}, nil
}
