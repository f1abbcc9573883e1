package server

import (
	"github.com/traveldairy2025nju/td-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile returns the caller's identity and role (protected)
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userRepo.GetByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetMyEntries lists the caller's entries in every status, or one status via
// ?status= (protected)
func (s *Server) GetMyEntries(c *fiber.Ctx) error {
	status := models.EntryStatus(c.Query("status"))
	page, err := s.entryService.ListByAuthor(c.UserContext(), currentUserID(c), status, parsePagination(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// GetMyFavorites lists entries the caller has favorited (protected)
func (s *Server) GetMyFavorites(c *fiber.Ctx) error {
	page, err := s.engagementService.ListFavorites(c.UserContext(), currentUserID(c), parsePagination(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}
