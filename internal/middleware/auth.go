package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken   = errors.New("authorization required")
	errInvalidToken   = errors.New("invalid or expired token")
	errInvalidSubject = errors.New("invalid user ID in token")
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// ParseUserID validates an HMAC-signed JWT and returns the user ID carried
// in its "sub" claim.
func ParseUserID(tokenString, secret string) (uint, error) {
	if tokenString == "" {
		return 0, errMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, errInvalidSubject
	}

	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, errInvalidSubject
	}
	return uint(userID), nil
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// JWTAuth enforces a valid bearer token and stores the caller's ID in
// c.Locals("userID").
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := ParseUserID(bearerToken(c), secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "UNAUTHORIZED",
			})
		}
		setUser(c, userID)
		return c.Next()
	}
}

// OptionalJWTAuth records the caller's ID when a valid token is present and
// lets anonymous requests through unchanged.
func OptionalJWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, err := ParseUserID(bearerToken(c), secret); err == nil {
			setUser(c, userID)
		}
		return c.Next()
	}
}
