package server

import (
	"github.com/traveldairy2025nju/td-backend/internal/featureflags"
	"github.com/traveldairy2025nju/td-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListPendingEntries returns the review queue, newest first (reviewer)
func (s *Server) ListPendingEntries(c *fiber.Ctx) error {
	page, err := s.entryService.ListPending(c.UserContext(), parsePagination(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// ApproveEntry publishes a pending entry (reviewer)
func (s *Server) ApproveEntry(c *fiber.Ctx) error {
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.moderationService.Approve(c.UserContext(), entryID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// RejectEntry rejects a pending entry with a reason (reviewer)
func (s *Server) RejectEntry(c *fiber.Ctx) error {
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	view, err := s.moderationService.Reject(c.UserContext(), entryID, currentUserID(c), req.Reason)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// ReviewEntryWithOracle asks the external screening model for advice. The
// entry is left untouched (reviewer)
func (s *Server) ReviewEntryWithOracle(c *fiber.Ctx) error {
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if !s.featureFlags.EnabledOr(featureflags.ExternalReview, currentUserID(c), true) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("External review is disabled"))
	}

	verdict, err := s.moderationService.AdviseWithExternalReview(c.UserContext(), entryID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(verdict)
}
