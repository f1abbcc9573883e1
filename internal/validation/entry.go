package validation

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/traveldairy2025nju/td-backend/internal/models"
)

// ValidateCoordinates checks a latitude/longitude pair against WGS84 ranges.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return models.NewValidationError("latitude must be between -90 and 90")
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return models.NewValidationError("longitude must be between -180 and 180")
	}
	return nil
}

// ValidateLocation accepts a location without coordinates, but a coordinate
// pair must be complete and in range.
func ValidateLocation(loc models.Location) error {
	if loc.Latitude == nil && loc.Longitude == nil {
		return nil
	}
	if !loc.HasCoordinates() {
		return models.NewValidationError("latitude and longitude must be provided together")
	}
	return ValidateCoordinates(*loc.Latitude, *loc.Longitude)
}

// ValidateCommentContent trims content and enforces the 1..MaxCommentLength character bound.
func ValidateCommentContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", models.NewValidationError("Comment content cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > models.MaxCommentLength {
		return "", models.NewValidationError("Comment content cannot exceed 500 characters")
	}
	return trimmed, nil
}

// ValidateImages requires at least one non-blank image URL and returns the trimmed list.
func ValidateImages(images []string) ([]string, error) {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if s := strings.TrimSpace(img); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, models.NewValidationError("At least one image is required")
	}
	return out, nil
}
