package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/featureflags"
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
	"github.com/traveldairy2025nju/td-backend/internal/validation"
)

// FlagChecker evaluates feature flags per user.
type FlagChecker interface {
	Enabled(name string, userID uint) bool
}

// EntryService owns the entry lifecycle up to the moderation decision.
type EntryService struct {
	entries repository.EntryRepository
	users   repository.UserRepository
	flags   FlagChecker
	isAdmin func(ctx context.Context, userID uint) (bool, error)
	canView func(ctx context.Context, userID uint) (bool, error)
	now     func() time.Time
}

type CreateEntryInput struct {
	AuthorID uint             `json:"-"`
	Title    string           `json:"title" validate:"required,max=255"`
	Content  string           `json:"content" validate:"required"`
	Images   []string         `json:"images" validate:"min=1"`
	Video    *string          `json:"video"`
	Location *models.Location `json:"location"`
}

// UpdateEntryInput replaces only the fields that are set. An empty Video
// string clears the video.
type UpdateEntryInput struct {
	EntryID  uint
	EditorID uint
	Title    string
	Content  string
	Images   []string
	Video    *string
	Location *models.Location
}

type DeleteEntryInput struct {
	EntryID uint
	UserID  uint
}

// NewEntryService wires the entry service. isAdmin decides whether a user may
// delete other authors' entries; canView whether a user may read entries
// that are not approved yet.
func NewEntryService(
	entries repository.EntryRepository,
	users repository.UserRepository,
	flags FlagChecker,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
	canView func(ctx context.Context, userID uint) (bool, error),
) *EntryService {
	return &EntryService{
		entries: entries,
		users:   users,
		flags:   flags,
		isAdmin: isAdmin,
		canView: canView,
		now:     time.Now,
	}
}

func (s *EntryService) bypassModeration(userID uint) bool {
	return s.flags != nil && s.flags.Enabled(featureflags.ModerationBypass, userID)
}

// Create stores a new entry awaiting review.
func (s *EntryService) Create(ctx context.Context, in CreateEntryInput) (*EntryView, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	images, err := validation.ValidateImages(in.Images)
	if err != nil {
		return nil, err
	}
	in.Images = images
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}

	entry := &models.Entry{
		Title:    in.Title,
		Content:  in.Content,
		Images:   images,
		Video:    normalizeVideo(in.Video),
		AuthorID: in.AuthorID,
		Status:   models.StatusPending,
	}
	if in.Location != nil {
		if err := validation.ValidateLocation(*in.Location); err != nil {
			return nil, err
		}
		entry.Location = *in.Location
	}
	if s.bypassModeration(in.AuthorID) {
		now := s.now()
		entry.Status = models.StatusApproved
		entry.ApprovedAt = &now
		slog.InfoContext(ctx, "moderation bypassed for new entry", "author_id", in.AuthorID)
	}

	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entryView(ctx, s.users, entry)
}

// Update edits an entry. Only the author may edit, and every edit sends the
// entry back to review.
func (s *EntryService) Update(ctx context.Context, in UpdateEntryInput) (*EntryView, error) {
	entry, err := s.entries.GetByID(ctx, in.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.AuthorID != in.EditorID {
		return nil, models.NewForbiddenError("You can only edit your own entries")
	}

	if t := strings.TrimSpace(in.Title); t != "" {
		if len([]rune(t)) > 255 {
			return nil, models.NewValidationError("title must be at most 255 characters")
		}
		entry.Title = t
	}
	if in.Content != "" {
		entry.Content = in.Content
	}
	if len(in.Images) > 0 {
		images, err := validation.ValidateImages(in.Images)
		if err != nil {
			return nil, err
		}
		entry.Images = images
	}
	if in.Video != nil {
		entry.Video = normalizeVideo(in.Video)
	}
	if in.Location != nil {
		if err := validation.ValidateLocation(*in.Location); err != nil {
			return nil, err
		}
		entry.Location = *in.Location
	}

	if !s.bypassModeration(in.EditorID) {
		entry.Status = models.StatusPending
		entry.RejectReason = nil
		entry.ApprovedAt = nil
		entry.ReviewedBy = nil
		entry.ReviewedAt = nil
	}

	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entryView(ctx, s.users, entry)
}

// Remove deletes an entry with all of its likes, favorites and comments.
func (s *EntryService) Remove(ctx context.Context, in DeleteEntryInput) error {
	entry, err := s.entries.GetByID(ctx, in.EntryID)
	if err != nil {
		return err
	}

	if entry.AuthorID != in.UserID {
		allowed, err := check(ctx, s.isAdmin, in.UserID)
		if err != nil {
			return err
		}
		if !allowed {
			return models.NewForbiddenError("You can only delete your own entries")
		}
	}

	if err := s.entries.DeleteCascade(ctx, in.EntryID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "entry removed", "entry_id", in.EntryID, "by", in.UserID)
	return nil
}

// Get returns one entry. Entries that are not approved are visible only to
// their author and to moderators.
func (s *EntryService) Get(ctx context.Context, entryID, viewerID uint) (*EntryView, error) {
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
	return entryView(ctx, s.users, entry)
}

// ListApproved pages published entries, optionally filtered by keyword.
func (s *EntryService) ListApproved(ctx context.Context, keyword string, req PageRequest) (*Page[*EntryView], error) {
	return s.list(ctx, repository.EntryFilter{Status: models.StatusApproved, Keyword: keyword}, req)
}

// ListByAuthor pages one author's entries in any or a given status.
func (s *EntryService) ListByAuthor(ctx context.Context, authorID uint, status models.EntryStatus, req PageRequest) (*Page[*EntryView], error) {
	if status != "" && !status.Valid() {
		return nil, models.NewValidationError("status must be one of: pending approved rejected")
	}
	return s.list(ctx, repository.EntryFilter{AuthorID: authorID, Status: status}, req)
}

// ListPending pages the review queue, newest first.
func (s *EntryService) ListPending(ctx context.Context, req PageRequest) (*Page[*EntryView], error) {
	return s.list(ctx, repository.EntryFilter{Status: models.StatusPending}, req)
}

func (s *EntryService) list(ctx context.Context, filter repository.EntryFilter, req PageRequest) (*Page[*EntryView], error) {
	req, limit, offset := req.normalize()
	entries, total, err := s.entries.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	views, err := entryViews(ctx, s.users, entries)
	if err != nil {
		return nil, err
	}
	return newPage(views, total, req), nil
}

func normalizeVideo(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// check runs an optional permission predicate; a nil predicate denies, and so
// does a user with no account row.
func check(ctx context.Context, pred func(context.Context, uint) (bool, error), userID uint) (bool, error) {
	if pred == nil || userID == 0 {
		return false, nil
	}
	allowed, err := pred(ctx, userID)
	if models.IsCode(err, models.CodeNotFound) {
		return false, nil
	}
	return allowed, err
}

// visibleTo reports whether viewerID may see entry. Entries that are not
// approved are visible only to their author and to users canView accepts.
func visibleTo(ctx context.Context, entry *models.Entry, viewerID uint, canView func(context.Context, uint) (bool, error)) (bool, error) {
	if entry.IsApproved() || (viewerID != 0 && entry.AuthorID == viewerID) {
		return true, nil
	}
	return check(ctx, canView, viewerID)
}
