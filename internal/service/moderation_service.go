package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/notifications"
	"github.com/traveldairy2025nju/td-backend/internal/observability"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
	"github.com/traveldairy2025nju/td-backend/internal/review"

	"go.opentelemetry.io/otel/attribute"
)

// DecisionNotifier delivers moderation outcomes to authors.
type DecisionNotifier interface {
	PublishModerationDecision(ctx context.Context, authorID uint, notice notifications.ModerationNotice) error
}

// ModerationService moves pending entries to approved or rejected and
// consults the external reviewer on request.
type ModerationService struct {
	entries  repository.EntryRepository
	users    repository.UserRepository
	reviewer review.Reviewer
	notifier DecisionNotifier
	now      func() time.Time
}

// NewModerationService returns a new ModerationService. reviewer and
// notifier may be nil.
func NewModerationService(
	entries repository.EntryRepository,
	users repository.UserRepository,
	reviewer review.Reviewer,
	notifier DecisionNotifier,
) *ModerationService {
	return &ModerationService{
		entries:  entries,
		users:    users,
		reviewer: reviewer,
		notifier: notifier,
		now:      time.Now,
	}
}

// Approve publishes a pending entry.
func (s *ModerationService) Approve(ctx context.Context, entryID, reviewerID uint) (_ *EntryView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "moderation", "Approve",
		attribute.Int64("entry.id", int64(entryID)),
		attribute.Int64("reviewer.id", int64(reviewerID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	now := s.now()
	entry, err := s.entries.TransitionFromPending(ctx, entryID, map[string]interface{}{
		"status":        models.StatusApproved,
		"approved_at":   now,
		"reviewed_by":   reviewerID,
		"reviewed_at":   now,
		"reject_reason": nil,
	})
	if err != nil {
		return nil, err
	}

	observability.ModerationDecisions.WithLabelValues(string(models.StatusApproved)).Inc()
	slog.InfoContext(ctx, "entry approved", "entry_id", entryID, "reviewer_id", reviewerID)
	s.notify(ctx, entry, notifications.EventEntryApproved, now)

	return entryView(ctx, s.users, entry)
}

// Reject sends a pending entry back to its author with a reason.
func (s *ModerationService) Reject(ctx context.Context, entryID, reviewerID uint, reason string) (_ *EntryView, err error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("reason is required")
	}

	ctx, span := observability.StartServiceSpan(ctx, "moderation", "Reject",
		attribute.Int64("entry.id", int64(entryID)),
		attribute.Int64("reviewer.id", int64(reviewerID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	now := s.now()
	entry, err := s.entries.TransitionFromPending(ctx, entryID, map[string]interface{}{
		"status":        models.StatusRejected,
		"reject_reason": reason,
		"approved_at":   nil,
		"reviewed_by":   reviewerID,
		"reviewed_at":   now,
	})
	if err != nil {
		return nil, err
	}

	observability.ModerationDecisions.WithLabelValues(string(models.StatusRejected)).Inc()
	slog.InfoContext(ctx, "entry rejected", "entry_id", entryID, "reviewer_id", reviewerID)
	s.notify(ctx, entry, notifications.EventEntryRejected, now)

	return entryView(ctx, s.users, entry)
}

// AdviseWithExternalReview asks the external reviewer for an opinion on an
// entry. The entry is never modified.
func (s *ModerationService) AdviseWithExternalReview(ctx context.Context, entryID uint) (_ *review.Verdict, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "moderation", "AdviseWithExternalReview",
		attribute.Int64("entry.id", int64(entryID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if s.reviewer == nil {
		return nil, models.NewReviewUnavailableError(nil)
	}

	verdict, err := s.reviewer.Review(ctx, entry.Title, entry.Content)
	if err != nil {
		slog.WarnContext(ctx, "external review failed", "entry_id", entryID, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("review.approved", verdict.Approved))
	return verdict, nil
}

func (s *ModerationService) notify(ctx context.Context, entry *models.Entry, event string, at time.Time) {
	if s.notifier == nil {
		return
	}
	notice := notifications.ModerationNotice{
		Type:       event,
		EntryID:    entry.ID,
		Title:      entry.Title,
		ReviewedAt: at,
	}
	if entry.ReviewedBy != nil {
		notice.ReviewedBy = *entry.ReviewedBy
	}
	if entry.RejectReason != nil {
		notice.Reason = *entry.RejectReason
	}
	if err := s.notifier.PublishModerationDecision(ctx, entry.AuthorID, notice); err != nil {
		slog.WarnContext(ctx, "failed to publish moderation notice",
			"entry_id", entry.ID, "author_id", entry.AuthorID, "error", err)
	}
}
