package controller

import (
	"foundermatch/middleware"
	"foundermatch/services"
	"foundermatch/utils"

	"github.com/gofiber/fiber/v2"
)

type ConnectionController struct {
	Connections   *services.ConnectionService
	Notifications *services.NotificationService
}

func (cc *ConnectionController) ListConnections(c *fiber.Ctx) error {
	profiles, err := cc.Connections.ListConnections(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(profiles))
}

// RequestConnection sends a connection request to :id
func (cc *ConnectionController) RequestConnection(c *fiber.Ctx) error {
	recipientID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	notification, err := cc.Notifications.RequestConnection(c.UserContext(), middleware.CurrentUserID(c), recipientID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(notification))
}

func (cc *ConnectionController) Disconnect(c *fiber.Ctx) error {
	otherID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	if err := cc.Connections.Disconnect(c.UserContext(), middleware.CurrentUserID(c), otherID); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"disconnected": true}))
}
