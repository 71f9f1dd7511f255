// handlers/report_routes.go
package handlers

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"numerai-reports/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReportRoutes(app *fiber.App, reports *services.ReportService, exporter *services.Exporter) {
	r := app.Group("/reports")

	r.Get("/all-star/:round", func(c *fiber.Ctx) error {
		round, err := c.ParamsInt("round")
		if err != nil {
			return badRequest(c, "round must be an integer")
		}
		t, err := reports.AllStarClub(c.UserContext(), round)
		return respondTable(c, exporter, t, err, strconv.Itoa(round))
	})

	r.Get("/out-of-n", func(c *fiber.Ctx) error {
		start, end, err := roundRange(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		t, err := reports.OutOfN(c.UserContext(), start, end)
		return respondTable(c, exporter, t, err, rangeName(start, end))
	})

	r.Get("/pass-rate", func(c *fiber.Ctx) error {
		start, end, err := roundRange(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		t, err := reports.PassRate(c.UserContext(), start, end)
		return respondTable(c, exporter, t, err, rangeName(start, end))
	})

	r.Get("/summary", func(c *fiber.Ctx) error {
		start, end, err := roundRange(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		t, err := reports.Summary(c.UserContext(), start, end)
		return respondTable(c, exporter, t, err, rangeName(start, end))
	})

	r.Get("/reputation", func(c *fiber.Ctx) error {
		start, end, err := roundRange(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		users := userList(c)
		if len(users) == 0 {
			return badRequest(c, "users is required")
		}
		window := c.QueryInt("window", 0)
		t, err := reports.ReputationReport(c.UserContext(), users, start, end, window, c.QueryBool("rank"))
		return respondTable(c, exporter, t, err, strings.Join(users, " "), rangeName(start, end))
	})

	r.Get("/reputation-bonus/:round", func(c *fiber.Ctx) error {
		round, err := c.ParamsInt("round")
		if err != nil {
			return badRequest(c, "round must be an integer")
		}
		b, err := reports.ReputationBonus(c.UserContext(), round, c.QueryInt("window", 0))
		if err != nil {
			return respondError(c, err)
		}
		if c.QueryBool("table") {
			return respondTable(c, exporter, b.Table(), nil, strconv.Itoa(round))
		}
		return c.JSON(b)
	})

	r.Get("/payments", func(c *fiber.Ctx) error {
		start, end, err := roundRange(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		users := userList(c)
		if len(users) == 0 {
			return badRequest(c, "users is required")
		}
		t, err := reports.Payments(c.UserContext(), users, start, end)
		return respondTable(c, exporter, t, err, strings.Join(users, " "), rangeName(start, end))
	})

	r.Get("/friends/:user", func(c *fiber.Ctx) error {
		start, end, err := roundRange(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		user := c.Params("user")
		t, err := reports.Friends(c.UserContext(), user, start, end, c.Query("metric", "live_auroc"))
		return respondTable(c, exporter, t, err, user, rangeName(start, end))
	})

	r.Get("/dominance/:user", func(c *fiber.Ctx) error {
		start, end, err := roundRange(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		user := c.Params("user")
		t, err := reports.Dominance(c.UserContext(), user, start, end,
			c.Query("kpi", "live_auroc"), c.Query("direction", services.DirectionMore))
		return respondTable(c, exporter, t, err, user, rangeName(start, end))
	})
}

// roundRange reads ?start= and the optional ?end=.
func roundRange(c *fiber.Ctx) (int, int, error) {
	start, err := strconv.Atoi(c.Query("start"))
	if err != nil {
		return 0, 0, fmt.Errorf("start must be an integer")
	}
	var end *int
	if raw := c.Query("end"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("end must be an integer")
		}
		end = &n
	}
	return services.RangeFor(start, end)
}

func rangeName(start, end int) string {
	return fmt.Sprintf("%d-%d", start, end)
}

func userList(c *fiber.Ctx) []string {
	var users []string
	for _, u := range strings.Split(c.Query("users"), ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	return users
}

func respondTable(c *fiber.Ctx, exporter *services.Exporter, t *services.Table, err error, parts ...string) error {
	if err != nil {
		return respondError(c, err)
	}
	if !c.QueryBool("export") {
		return c.JSON(t)
	}
	url, err := exporter.Export(c.UserContext(), t, parts...)
	if errors.Is(err, services.ErrExportDisabled) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		log.Printf("[R2] ❌ Export of %s failed: %v", t.Name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to export report",
			"cause": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"url": url, "report": t})
}

func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrUnknownRound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidMetric), errors.Is(err, services.ErrInvalidDirection):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrMalformedResponse):
		status = fiber.StatusBadGateway
	}
	if status == fiber.StatusInternalServerError {
		log.Printf("[REPORTS] ❌ %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
