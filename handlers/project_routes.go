// handlers/project_routes.go
package handlers

import (
	"ecoenzim-service/middleware"
	"ecoenzim-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type createProjectRequest struct {
	OrganicWasteWeight *float64 `json:"organic_waste_weight" validate:"required"`
	StartDate          string   `json:"start_date" validate:"required"`
	EndDate            string   `json:"end_date" validate:"required"`
	Started            *bool    `json:"started"`
}

func SetupProjectRoutes(router fiber.Router, projects *services.ProjectService, claims *services.ClaimService, log logrus.FieldLogger) {
	router.Get("/projects", func(c *fiber.Ctx) error {
		res, err := projects.List(c.UserContext(), middleware.CurrentActor(c), pageParams(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	router.Get("/projects/:id", func(c *fiber.Ctx) error {
		detail, err := projects.Get(c.UserContext(), middleware.CurrentActor(c), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(detail)
	})

	router.Post("/projects", func(c *fiber.Ctx) error {
		var req createProjectRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, log, err)
		}
		start, err := services.ParseDate(req.StartDate)
		if err != nil {
			return respondError(c, log, err)
		}
		end, err := services.ParseDate(req.EndDate)
		if err != nil {
			return respondError(c, log, err)
		}

		p, err := projects.Create(c.UserContext(), middleware.CurrentActor(c), services.CreateProjectInput{
			OrganicWasteWeight: *req.OrganicWasteWeight,
			StartDate:          start,
			EndDate:            end,
			Started:            req.Started,
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	router.Patch("/projects/:id/start", func(c *fiber.Ctx) error {
		p, err := projects.Start(c.UserContext(), middleware.CurrentActor(c), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(p)
	})

	router.Delete("/projects/:id", func(c *fiber.Ctx) error {
		if err := projects.Delete(c.UserContext(), middleware.CurrentActor(c), c.Params("id")); err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"message": "project deleted"})
	})

	router.Post("/projects/:id/claim", func(c *fiber.Ctx) error {
		res, err := claims.Claim(c.UserContext(), middleware.CurrentActor(c), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})
}
