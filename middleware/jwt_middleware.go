package middleware

import (
	"strings"

	"foundermatch/apperr"
	"foundermatch/models"
	"foundermatch/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Protected resolves the current principal from a bearer token in the
// Authorization header or the access_token cookie
func Protected(db *gorm.DB, issuer *utils.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Try to get token from Authorization header first
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return utils.ErrorResponse(c, apperr.Unauthorized("Invalid authorization format"))
			}
			token = tokenParts[1]
		} else {
			// Fall back to cookie if header not present
			token = c.Cookies("access_token")
			if token == "" {
				return utils.ErrorResponse(c, apperr.Unauthorized("Authorization required"))
			}
		}

		claims, err := issuer.ParseToken(token, utils.TokenTypeAccess)
		if err != nil {
			return utils.ErrorResponse(c, apperr.Unauthorized("Invalid or expired token"))
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
			return utils.ErrorResponse(c, apperr.Unauthorized("User not found"))
		}
		if !user.IsActive {
			return utils.ErrorResponse(c, apperr.Forbidden("Account is not active"))
		}

		c.Locals("user", &user)
		c.Locals("userID", user.ID)

		return c.Next()
	}
}

// CurrentUser returns the principal set by Protected, or nil
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

// CurrentUserID returns the id of the principal set by Protected, or 0
func CurrentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}
