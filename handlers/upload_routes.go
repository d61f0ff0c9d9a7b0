// handlers/upload_routes.go
package handlers

import (
	"encoding/json"
	"strings"

	"ecoenzim-service/middleware"
	"ecoenzim-service/services"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type submitUploadRequest struct {
	ProjectID    string          `json:"project_id" validate:"required"`
	MonthNumber  json.RawMessage `json:"month_number"`
	PhotoURL     *string         `json:"photo_url"`
	UploadedDate string          `json:"uploaded_date"`
}

type rejectUploadRequest struct {
	Reason string `json:"reason"`
}

func SetupUploadRoutes(router fiber.Router, uploads *services.UploadService, log logrus.FieldLogger) {
	router.Get("/uploads", func(c *fiber.Ctx) error {
		res, err := uploads.ListAll(c.UserContext(), middleware.CurrentActor(c), pageParams(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	router.Get("/uploads/project/:projectId", func(c *fiber.Ctx) error {
		list, err := uploads.ListByProject(c.UserContext(), middleware.CurrentActor(c), c.Params("projectId"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"items": list})
	})

	router.Post("/uploads", func(c *fiber.Ctx) error {
		in, cleanup, err := readUpload(c)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			return respondError(c, log, err)
		}
		u, err := uploads.Submit(c.UserContext(), middleware.CurrentActor(c), in)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	})

	router.Put("/uploads/:id/verify", func(c *fiber.Ctx) error {
		u, err := uploads.Verify(c.UserContext(), middleware.CurrentActor(c), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(u)
	})

	router.Put("/uploads/:id/reject", func(c *fiber.Ctx) error {
		var req rejectUploadRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, log, err)
		}
		u, err := uploads.Reject(c.UserContext(), middleware.CurrentActor(c), c.Params("id"), req.Reason)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(u)
	})
}

// readUpload accepts either a JSON body or a multipart form with an optional "photo" file.
func readUpload(c *fiber.Ctx) (services.SubmitUploadInput, func(), error) {
	var (
		in                services.SubmitUploadInput
		rawMonth, rawDate string
		cleanup           func()
	)

	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		in.ProjectID = fiberutils.CopyString(strings.TrimSpace(c.FormValue("project_id")))
		rawMonth = c.FormValue("month_number")
		rawDate = c.FormValue("uploaded_date")
		if v := c.FormValue("photo_url"); v != "" {
			v = fiberutils.CopyString(v)
			in.PhotoURL = &v
		}
		if fh, err := c.FormFile("photo"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return in, nil, err
			}
			cleanup = func() { _ = f.Close() }
			in.Photo = &services.PhotoInput{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Body:        f,
			}
		}
		if in.ProjectID == "" {
			return in, cleanup, services.Validation(services.CodeValidationFailed, "project_id is required")
		}
	} else {
		var req submitUploadRequest
		if err := parseBody(c, &req); err != nil {
			return in, nil, err
		}
		in.ProjectID = req.ProjectID
		in.PhotoURL = req.PhotoURL
		rawMonth = string(req.MonthNumber)
		rawDate = req.UploadedDate
	}

	month, err := services.ParseMonthNumber(rawMonth)
	if err != nil {
		return in, cleanup, err
	}
	in.MonthNumber = month

	if strings.TrimSpace(rawDate) != "" {
		d, err := services.ParseDate(rawDate)
		if err != nil {
			return in, cleanup, err
		}
		in.UploadedDate = d
	}
	return in, cleanup, nil
}
