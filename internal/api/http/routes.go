package httpapi

import (
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/board"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var validate = validator.New()

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, b *board.Board) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c.Query("city"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := service.Search(c.UserContext(), q.City)
		if err != nil {
			return mapServiceError(err)
		}

		return c.JSON(fiber.Map{
			"result": res,
			"board":  b.Snapshot(),
		})
	})

	v1.Get("/cities", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"cities": b.Snapshot().Cities,
		})
	})

	v1.Get("/cities/:city", func(c *fiber.Ctx) error {
		raw, err := url.PathUnescape(c.Params("city"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid city")
		}
		q, err := parseCityQuery(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := service.ShowCached(c.UserContext(), q.City)
		if err != nil {
			return mapServiceError(err)
		}

		return c.JSON(fiber.Map{
			"result": res,
			"board":  b.Snapshot(),
		})
	})

	v1.Post("/cache/prune", func(c *fiber.Ctx) error {
		survivors := service.Prune(c.UserContext())
		return c.JSON(fiber.Map{
			"survivors": survivors,
		})
	})

	v1.Get("/board", func(c *fiber.Ctx) error {
		return c.JSON(b.Snapshot())
	})
}

// cityQuery holds the city a request is about.
type cityQuery struct {
	City string `validate:"required,max=100"`
}

func parseCityQuery(raw string) (cityQuery, error) {
	q := cityQuery{City: weather.NormalizeCity(raw)}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, weather.ErrEmptyCity):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrNotCached):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrUpstream):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}
