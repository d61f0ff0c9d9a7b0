// middleware/auth.go
package middleware

import (
	"strings"

	"ecoenzim-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

const (
	localUserID    = "user_id"
	localUserRoles = "user_roles"
)

// UserContextMiddleware extracts user identity and roles set by the gateway.
func UserContextMiddleware(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Header values alias the request buffer; copy what outlives the handler.
		userID := utils.CopyString(strings.TrimSpace(c.Get("X-User-ID")))
		if userID == "" {
			log.WithField("path", c.Path()).Warn("❌ [USER_CTX] X-User-ID required but missing")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "UNAUTHORIZED",
				"message": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, utils.CopyString(strings.ToLower(r)))
			}
		}

		c.Locals(localUserID, userID)
		c.Locals(localUserRoles, roles)
		return c.Next()
	}
}

// CurrentActor returns the caller placed in the context by the auth middleware.
func CurrentActor(c *fiber.Ctx) services.Actor {
	id, _ := c.Locals(localUserID).(string)
	roles, _ := c.Locals(localUserRoles).([]string)

	actor := services.Actor{ID: id}
	for _, r := range roles {
		if r == services.RoleAdmin {
			actor.Role = services.RoleAdmin
			return actor
		}
	}
	if len(roles) > 0 {
		actor.Role = roles[0]
	}
	return actor
}

// RequireRole rejects callers without role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(localUserRoles).([]string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   services.CodeAdminOnly,
			"message": role + " role required",
		})
	}
}

// ProvisionUser makes sure the caller has a local users row before any handler runs.
func ProvisionUser(users *services.UserService, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := CurrentActor(c)
		if _, err := users.Ensure(c.UserContext(), actor); err != nil {
			log.WithError(err).WithField("user_id", actor.ID).Error("failed to provision user")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "INTERNAL_ERROR",
				"message": "failed to load user",
			})
		}
		return c.Next()
	}
}
