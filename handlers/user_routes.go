// handlers/user_routes.go
package handlers

import (
	"ecoenzim-service/middleware"
	"ecoenzim-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// SetupUserRoutes exposes balances, the points ledger and milestone progress.
func SetupUserRoutes(router fiber.Router, users *services.UserService, ledger *services.LedgerService, rewards *services.RewardService, log logrus.FieldLogger) {
	router.Get("/users/me", func(c *fiber.Ctx) error {
		u, err := users.Profile(c.UserContext(), middleware.CurrentActor(c).ID)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(u)
	})

	router.Get("/users/me/points-history", func(c *fiber.Ctx) error {
		res, err := ledger.History(c.UserContext(), middleware.CurrentActor(c).ID, pageParams(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	router.Get("/users/me/points-history/stream", pointsStream(ledger, log))

	router.Get("/users/me/milestones", func(c *fiber.Ctx) error {
		res, err := rewards.ListClaims(c.UserContext(), middleware.CurrentActor(c).ID, pageParams(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	router.Get("/users/:username/points-history", func(c *fiber.Ctx) error {
		u, err := users.Resolve(c.UserContext(), middleware.CurrentActor(c), c.Params("username"))
		if err != nil {
			return respondError(c, log, err)
		}
		res, err := ledger.History(c.UserContext(), u.ID, pageParams(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	router.Get("/users/:username/milestones", func(c *fiber.Ctx) error {
		u, err := users.Resolve(c.UserContext(), middleware.CurrentActor(c), c.Params("username"))
		if err != nil {
			return respondError(c, log, err)
		}
		res, err := rewards.ListClaims(c.UserContext(), u.ID, pageParams(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})
}

// SetupAdminRoutes mounts operator endpoints under /admin.
func SetupAdminRoutes(router fiber.Router, rewards *services.RewardService, log logrus.FieldLogger) {
	admin := router.Group("/admin", middleware.RequireRole(services.RoleAdmin))

	admin.Post("/users/:username/milestones/:code/progress", func(c *fiber.Ctx) error {
		var req progressRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, log, err)
		}
		res, err := rewards.ClaimMilestoneFor(c.UserContext(), middleware.CurrentActor(c), c.Params("username"), c.Params("code"), req.ProgressDays)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})
}
