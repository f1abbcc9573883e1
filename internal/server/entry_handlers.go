package server

import (
	"strconv"
	"strings"

	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateEntryRequest struct {
	Title    string           `json:"title"`
	Content  string           `json:"content"`
	Images   []string         `json:"images"`
	Video    *string          `json:"video"`
	Location *models.Location `json:"location"`
}

// ListEntries returns published entries, optionally filtered by keyword (public)
func (s *Server) ListEntries(c *fiber.Ctx) error {
	page, err := s.entryService.ListApproved(c.UserContext(), c.Query("keyword"), parsePagination(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// SearchEntries matches title, content and author nickname (public)
func (s *Server) SearchEntries(c *fiber.Ctx) error {
	page, err := s.discoveryService.Search(c.UserContext(), c.Query("keyword"), parsePagination(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// NearbyEntries ranks published entries by distance from lat/lng (public)
func (s *Server) NearbyEntries(c *fiber.Ctx) error {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(c.Query("lat")), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(c.Query("lng")), 64)
	if latErr != nil || lngErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("lat and lng must be numbers"))
	}

	page, err := s.discoveryService.FindNearby(c.UserContext(), lat, lng, parsePagination(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// GetEntry returns one entry. Authenticated callers also get their like and
// favorite state.
func (s *Server) GetEntry(c *fiber.Ctx) error {
	ctx := c.UserContext()
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	viewerID := currentUserID(c)

	view, err := s.entryService.Get(ctx, entryID, viewerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	if err := s.engagementService.Annotate(ctx, view, viewerID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// CreateEntry submits a new entry for review (protected)
func (s *Server) CreateEntry(c *fiber.Ctx) error {
	var req service.CreateEntryInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}
	req.AuthorID = currentUserID(c)

	view, err := s.entryService.Create(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// UpdateEntry edits the caller's entry and sends it back to review (protected)
func (s *Server) UpdateEntry(c *fiber.Ctx) error {
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req updateEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	view, err := s.entryService.Update(c.UserContext(), service.UpdateEntryInput{
		EntryID:  entryID,
		EditorID: currentUserID(c),
		Title:    req.Title,
		Content:  req.Content,
		Images:   req.Images,
		Video:    req.Video,
		Location: req.Location,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// DeleteEntry removes an entry with its likes, favorites and comments.
// Authors may delete their own entries; admins may delete any.
func (s *Server) DeleteEntry(c *fiber.Ctx) error {
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.entryService.Remove(c.UserContext(), service.DeleteEntryInput{
		EntryID: entryID,
		UserID:  currentUserID(c),
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Entry deleted successfully"})
}

// ToggleLike likes or unlikes a published entry (protected)
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.engagementService.ToggleLike(c.UserContext(), entryID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(res)
}

// ToggleFavorite favorites or unfavorites a published entry (protected)
func (s *Server) ToggleFavorite(c *fiber.Ctx) error {
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.engagementService.ToggleFavorite(c.UserContext(), entryID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(res)
}
