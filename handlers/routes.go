package handlers

import (
	"ecoenzim-service/middleware"
	"ecoenzim-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Services struct {
	Projects *services.ProjectService
	Uploads  *services.UploadService
	Claims   *services.ClaimService
	Rewards  *services.RewardService
	Users    *services.UserService
	Ledger   *services.LedgerService
}

// SetupOpsRoutes must be registered before SetupRoutes so health and metrics stay unauthenticated.
func SetupOpsRoutes(app *fiber.App, gatherer prometheus.Gatherer) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// SetupRoutes mounts every authenticated route behind the auth chain.
func SetupRoutes(app *fiber.App, svc Services, log logrus.FieldLogger, auth ...fiber.Handler) {
	chain := append(append([]fiber.Handler{}, auth...), middleware.ProvisionUser(svc.Users, log))
	secured := app.Group("/", chain...)

	SetupProjectRoutes(secured, svc.Projects, svc.Claims, log)
	SetupUploadRoutes(secured, svc.Uploads, log)
	SetupRewardRoutes(secured, svc.Rewards, log)
	SetupUserRoutes(secured, svc.Users, svc.Ledger, svc.Rewards, log)
	SetupAdminRoutes(secured, svc.Rewards, log)
}
