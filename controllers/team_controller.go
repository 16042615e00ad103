package controller

import (
	"errors"

	"foundermatch/apperr"
	"foundermatch/middleware"
	"foundermatch/services"
	"foundermatch/utils"

	"github.com/gofiber/fiber/v2"
)

type InviteMembersRequest struct {
	UserIDs []uint `json:"user_ids" validate:"required,min=1,max=50"`
}

type TeamController struct {
	Teams *services.TeamService
}

func (tc *TeamController) CreateTeam(c *fiber.Ctx) error {
	var req services.TeamInput
	if err := utils.ParseBody(c, &req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	team, err := tc.Teams.CreateTeam(c.UserContext(), middleware.CurrentUserID(c), req)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(team))
}

// ListTeams supports ?industry= and ?stage=
func (tc *TeamController) ListTeams(c *fiber.Ctx) error {
	filter := services.TeamFilter{
		Industry: c.Query("industry"),
		Stage:    c.Query("stage"),
	}
	teams, err := tc.Teams.ListTeams(c.UserContext(), middleware.CurrentUserID(c), filter)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(teams))
}

func (tc *TeamController) GetTeam(c *fiber.Ctx) error {
	teamID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	team, err := tc.Teams.GetTeam(c.UserContext(), teamID, middleware.CurrentUserID(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(team))
}

func (tc *TeamController) UpdateTeam(c *fiber.Ctx) error {
	teamID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	var req services.TeamUpdate
	if err := utils.ParseBody(c, &req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	team, err := tc.Teams.UpdateTeam(c.UserContext(), teamID, middleware.CurrentUserID(c), req)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(team))
}

func (tc *TeamController) DeleteTeam(c *fiber.Ctx) error {
	teamID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	if err := tc.Teams.DeleteTeam(c.UserContext(), teamID, middleware.CurrentUserID(c)); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

func (tc *TeamController) RequestJoin(c *fiber.Ctx) error {
	teamID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	notification, err := tc.Teams.RequestJoin(c.UserContext(), teamID, middleware.CurrentUserID(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(notification))
}

func (tc *TeamController) ApproveJoin(c *fiber.Ctx) error {
	teamID, targetID, err := teamMemberParams(c)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	notification, err := tc.Teams.ApproveJoin(c.UserContext(), teamID, middleware.CurrentUserID(c), targetID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(notification))
}

func (tc *TeamController) DeclineJoin(c *fiber.Ctx) error {
	teamID, targetID, err := teamMemberParams(c)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	notification, err := tc.Teams.DeclineJoin(c.UserContext(), teamID, middleware.CurrentUserID(c), targetID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(utils.SuccessResponse(notification))
}

// InviteMembers answers 207 when only some of the invites went out
func (tc *TeamController) InviteMembers(c *fiber.Ctx) error {
	teamID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	var req InviteMembersRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	sent, err := tc.Teams.InviteMembers(c.UserContext(), teamID, middleware.CurrentUserID(c), req.UserIDs)
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindPartialFailure {
		return c.Status(appErr.Status()).JSON(fiber.Map{
			"success": false,
			"error":   appErr.Message,
			"code":    appErr.Kind,
			"data":    sent,
			"details": appErr.Details,
		})
	}
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sent))
}

func teamMemberParams(c *fiber.Ctx) (uint, uint, error) {
	teamID, err := utils.ParseID(c.Params("id"))
	if err != nil {
		return 0, 0, err
	}
	userID, err := utils.ParseID(c.Params("userId"))
	if err != nil {
		return 0, 0, err
	}
	return teamID, userID, nil
}
