// handlers/reward_routes.go
package handlers

import (
	"strconv"

	"ecoenzim-service/middleware"
	"ecoenzim-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type rewardRequest struct {
	Code         string `json:"code" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	PointsReward int64  `json:"points_reward" validate:"gte=0"`
	TargetDays   int    `json:"target_days" validate:"gte=1"`
	IsActive     *bool  `json:"is_active"`
}

type rewardPatchRequest struct {
	Code         *string `json:"code"`
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	PointsReward *int64  `json:"points_reward" validate:"omitempty,gte=0"`
	TargetDays   *int    `json:"target_days" validate:"omitempty,gte=1"`
	IsActive     *bool   `json:"is_active"`
}

type progressRequest struct {
	ProgressDays *int `json:"progress_days"`
}

func SetupRewardRoutes(router fiber.Router, rewards *services.RewardService, log logrus.FieldLogger) {
	router.Get("/rewards", func(c *fiber.Ctx) error {
		q := services.RewardQuery{Search: c.Query("search"), Page: pageParams(c)}
		if raw := c.Query("is_active"); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				return badRequest(c, "is_active must be true or false")
			}
			q.IsActive = &active
		}
		res, err := rewards.List(c.UserContext(), q)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	router.Get("/rewards/:id", func(c *fiber.Ctx) error {
		r, err := rewards.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(r)
	})

	router.Post("/rewards", func(c *fiber.Ctx) error {
		var req rewardRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, log, err)
		}
		r, err := rewards.Create(c.UserContext(), middleware.CurrentActor(c), services.RewardInput{
			Code:         req.Code,
			Name:         req.Name,
			Description:  req.Description,
			PointsReward: req.PointsReward,
			TargetDays:   req.TargetDays,
			IsActive:     req.IsActive,
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(r)
	})

	router.Put("/rewards/:id", func(c *fiber.Ctx) error {
		var req rewardPatchRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, log, err)
		}
		r, err := rewards.Update(c.UserContext(), middleware.CurrentActor(c), c.Params("id"), services.RewardPatch{
			Code:         req.Code,
			Name:         req.Name,
			Description:  req.Description,
			PointsReward: req.PointsReward,
			TargetDays:   req.TargetDays,
			IsActive:     req.IsActive,
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(r)
	})

	router.Delete("/rewards/:id", func(c *fiber.Ctx) error {
		if err := rewards.Delete(c.UserContext(), middleware.CurrentActor(c), c.Params("id")); err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"message": "reward deleted"})
	})

	router.Post("/rewards/:code/claim", func(c *fiber.Ctx) error {
		var req progressRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, log, err)
		}
		actor := middleware.CurrentActor(c)
		res, err := rewards.ClaimMilestone(c.UserContext(), actor.ID, c.Params("code"), req.ProgressDays)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})
}
