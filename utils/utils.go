package utils

import (
	"errors"
	"fmt"
	"strconv"

	"foundermatch/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(userID uint, path string) string {
	return fmt.Sprintf("rl:%d:%s", userID, path)
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// ErrorResponse writes err as a standardized error response. Classified
// errors keep their status; anything else is a 500.
func ErrorResponse(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"success": false,
				"error":   fiberErr.Message,
			})
		}
		LogError("unhandled_error", err, map[string]interface{}{
			"path":   c.Path(),
			"method": c.Method(),
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Internal server error",
		})
	}

	if appErr.Kind == apperr.KindUpstream && appErr.Err != nil {
		LogError("upstream_failure", appErr.Err, map[string]interface{}{
			"path":    c.Path(),
			"message": appErr.Message,
		})
	} else {
		logrus.WithFields(logrus.Fields{
			"path": c.Path(),
			"kind": appErr.Kind,
		}).Debug(appErr.Message)
	}

	response := fiber.Map{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Kind,
	}
	if appErr.Details != nil {
		response["details"] = appErr.Details
	}
	return c.Status(appErr.Status()).JSON(response)
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// ParseID parses a positive numeric path parameter
func ParseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.InvalidInput("invalid id: " + s)
	}
	return uint(id), nil
}

// ParseBody decodes the request body into dst and validates it
func ParseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	if err := ValidateStruct(dst); err != nil {
		return apperr.InvalidInput(err.Error())
	}
	return nil
}
