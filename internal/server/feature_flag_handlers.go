package server

import (
	"github.com/traveldairy2025nju/td-backend/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured feature flags and their evaluated state
// for the caller, plus the effective state of the flags the API consults.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
		"effective": fiber.Map{
			featureflags.ModerationBypass: s.featureFlags.Enabled(featureflags.ModerationBypass, userID),
			featureflags.ExternalReview:   s.featureFlags.EnabledOr(featureflags.ExternalReview, userID, true),
		},
	})
}
