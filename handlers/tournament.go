package handlers

import (
	"numerai-reports/models"
	"numerai-reports/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, window *services.Window) {
	app.Get("/tournaments", func(c *fiber.Ctx) error {
		tourns, err := window.Tournaments(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		rounds, err := window.Rounds(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		counts := make(map[int]int)
		for _, r := range rounds {
			for _, t := range r.Tournaments {
				counts[t.ID]++
			}
		}

		out := make([]models.Tournament, 0, len(tourns))
		for _, t := range tourns {
			m := models.Tournament{ID: t.ID, Name: t.Name, Active: t.Active, Rounds: counts[t.ID]}
			m.DisplayName = m.TitleName()
			out = append(out, m)
		}
		return c.JSON(out)
	})

	app.Get("/rounds", func(c *fiber.Ctx) error {
		rounds, err := window.Rounds(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		type roundView struct {
			Round       int   `json:"round"`
			Resolved    bool  `json:"resolved"`
			Tournaments []int `json:"tournaments"`
		}
		out := make([]roundView, 0, len(rounds))
		for _, r := range rounds {
			v := roundView{Round: r.Round, Resolved: r.Resolved}
			for _, t := range r.Tournaments {
				v.Tournaments = append(v.Tournaments, t.ID)
			}
			out = append(out, v)
		}
		return c.JSON(out)
	})
}
