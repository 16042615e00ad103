package controller

import (
	"foundermatch/middleware"
	"foundermatch/services"
	"foundermatch/utils"

	"github.com/gofiber/fiber/v2"
)

type UserController struct {
	Users *services.UserService
}

// GetUser returns the full profile for the caller and the public profile
// for anyone else
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	id, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	user, err := uc.Users.GetProfile(c.UserContext(), id)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	if id == middleware.CurrentUserID(c) {
		return c.JSON(utils.SuccessResponse(user))
	}
	return c.JSON(utils.SuccessResponse(user.Public()))
}

func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	var req services.ProfileUpdate
	if err := utils.ParseBody(c, &req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	user, err := uc.Users.UpdateProfile(c.UserContext(), middleware.CurrentUserID(c), req)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(user))
}

func (uc *UserController) DeleteAccount(c *fiber.Ctx) error {
	if err := uc.Users.DeleteAccount(c.UserContext(), middleware.CurrentUserID(c)); err != nil {
		return utils.ErrorResponse(c, err)
	}
	c.ClearCookie("access_token", "refresh_token")
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}
