package handlers

import (
	"context"

	"numerai-reports/models"

	"github.com/gofiber/fiber/v2"
)

// SyncRunLister reads the history of round syncs.
type SyncRunLister interface {
	LatestSyncRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

func SetupSyncRoutes(app *fiber.App, runs SyncRunLister) {
	app.Get("/sync/runs", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		if limit <= 0 || limit > 200 {
			return badRequest(c, "limit must be between 1 and 200")
		}
		out, err := runs.LatestSyncRuns(c.UserContext(), limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(out)
	})
}
