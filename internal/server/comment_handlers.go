package server

import (
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListComments returns threaded comments for an entry (public). Liked state
// is included when the caller is authenticated.
func (s *Server) ListComments(c *fiber.Ctx) error {
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	page, err := s.commentService.ListComments(c.UserContext(), entryID, currentUserID(c), parsePagination(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// CreateComment adds a comment or reply to a published entry (protected)
func (s *Server) CreateComment(c *fiber.Ctx) error {
	entryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	created, err := s.commentService.AddComment(c.UserContext(), service.CreateCommentInput{
		EntryID:  entryID,
		UserID:   currentUserID(c),
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// DeleteComment removes a comment and its replies (protected)
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.commentService.RemoveComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    currentUserID(c),
		CommentID: commentID,
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Comment deleted successfully"})
}

// ToggleCommentLike likes or unlikes a comment (protected)
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.commentService.ToggleCommentLike(c.UserContext(), commentID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(res)
}
