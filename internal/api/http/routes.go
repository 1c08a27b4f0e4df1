package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/agrowhq/field-analytics/internal/advisor"
	"github.com/agrowhq/field-analytics/internal/analytics"
	"github.com/agrowhq/field-analytics/internal/fields"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, tiles *analytics.Service, registry *fields.Registry, adv *advisor.Advisor) {
	v1 := app.Group("/api/v1")

	v1.Get("/tiles", func(c *fiber.Ctx) error {
		req, err := parseTileQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		payload, err := tiles.GetTile(c.Context(), req.toFieldPoint(), req.Metric)
		if err != nil {
			return tileError(err)
		}
		return c.JSON(payload)
	})

	v1.Post("/tiles/refresh", func(c *fiber.Ctx) error {
		var req tileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		payload, err := tiles.Refresh(c.Context(), req.toFieldPoint(), req.Metric)
		if err != nil {
			return tileError(err)
		}
		return c.JSON(payload)
	})

	v1.Get("/tiles/status", func(c *fiber.Ctx) error {
		req, err := parseTileQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(fiber.Map{
			"metric": req.Metric,
			"state":  tiles.TileStatus(req.toFieldPoint(), req.Metric),
		})
	})

	v1.Get("/timeseries", func(c *fiber.Ctx) error {
		req, err := parseTileQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		series, err := tiles.GetSeries(c.Context(), req.toFieldPoint(), req.Metric)
		if err != nil {
			return tileError(err)
		}
		return c.JSON(series)
	})

	v1.Post("/fields", func(c *fiber.Ctx) error {
		var req createFieldRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		f, err := registry.Create(c.Context(), req.Name, req.Lat, req.Lon, req.SizeHectares, req.Address)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(f)
	})

	v1.Get("/fields", func(c *fiber.Ctx) error {
		list, err := registry.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list fields")
		}
		return c.JSON(fiber.Map{"fields": list})
	})

	v1.Get("/fields/:id", func(c *fiber.Ctx) error {
		f, err := registry.Get(c.Context(), c.Params("id"))
		if errors.Is(err, fields.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "field not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load field")
		}
		return c.JSON(f)
	})

	v1.Delete("/fields/:id", func(c *fiber.Ctx) error {
		if err := registry.Delete(c.Context(), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to delete field")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Post("/advisor/chat", func(c *fiber.Ctx) error {
		var req chatRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if !adv.Enabled() {
			return fiber.NewError(fiber.StatusServiceUnavailable, "advisor is not configured")
		}

		answer, err := adv.Ask(c.Context(), req.toFieldPoint(), req.Question)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(fiber.Map{"answer": answer})
	})
}

// tileError maps orchestration failures onto HTTP statuses.
func tileError(err error) error {
	if errors.Is(err, analytics.ErrUnknownMetric) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusBadGateway, err.Error())
}

// tileRequest identifies one (field, metric) tile.
type tileRequest struct {
	Lat          float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon          float64 `json:"lon" validate:"gte=-180,lte=180"`
	SizeHectares float64 `json:"sizeHectares" validate:"gt=0"`
	Metric       string  `json:"metric" validate:"required"`
}

func (t tileRequest) toFieldPoint() analytics.FieldPoint {
	return analytics.FieldPoint{Lat: t.Lat, Lon: t.Lon, SizeHectares: t.SizeHectares}
}

func parseTileQuery(c *fiber.Ctx) (tileRequest, error) {
	var req tileRequest

	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		return req, errors.New("lat and lon query parameters are required")
	}

	var err error
	if req.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return req, errors.New("invalid lat")
	}
	if req.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return req, errors.New("invalid lon")
	}

	req.SizeHectares = 10 // service-side default field size
	if s := c.Query("sizeHa"); s != "" {
		if req.SizeHectares, err = strconv.ParseFloat(s, 64); err != nil {
			return req, errors.New("invalid sizeHa")
		}
	}

	req.Metric = c.Query("metric")

	if err := validate.Struct(req); err != nil {
		return req, err
	}
	return req, nil
}

// createFieldRequest registers a field by coordinates or address.
type createFieldRequest struct {
	Name         string          `json:"name" validate:"required"`
	Lat          float64         `json:"lat" validate:"gte=-90,lte=90"`
	Lon          float64         `json:"lon" validate:"gte=-180,lte=180"`
	SizeHectares float64         `json:"sizeHectares" validate:"gt=0"`
	Address      *fields.Address `json:"address,omitempty"`
}

// chatRequest asks the advisor a question about one field.
type chatRequest struct {
	Lat          float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon          float64 `json:"lon" validate:"gte=-180,lte=180"`
	SizeHectares float64 `json:"sizeHectares"`
	Question     string  `json:"question" validate:"required"`
}

func (r chatRequest) toFieldPoint() analytics.FieldPoint {
	return analytics.FieldPoint{Lat: r.Lat, Lon: r.Lon, SizeHectares: r.SizeHectares}
}
