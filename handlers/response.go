package handlers

import (
	"ecoenzim-service/services"
	"ecoenzim-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindValidation, services.KindConflict:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// respondError writes domain errors with their code and hides everything else behind a 500.
func respondError(c *fiber.Ctx, log logrus.FieldLogger, err error) error {
	if de, ok := services.AsError(err); ok {
		return c.Status(statusFor(de.Kind)).JSON(fiber.Map{
			"error":   de.Code,
			"message": de.Message,
		})
	}
	log.WithError(err).WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).Error("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "INTERNAL_ERROR",
		"message": "internal server error",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   services.CodeValidationFailed,
		"message": msg,
	})
}

// parseBody decodes and validates a JSON body. An empty body leaves dst untouched.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return services.Validation(services.CodeValidationFailed, "invalid request body")
		}
	}
	if err := utils.ValidateStruct(dst); err != nil {
		return services.Validation(services.CodeValidationFailed, utils.FormatValidationErrors(err))
	}
	return nil
}

func pageParams(c *fiber.Ctx) services.PageParams {
	return services.NormalizePage(c.QueryInt("page", 1), c.QueryInt("limit", services.DefaultPageLimit))
}
