package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core/badge"
)

type badgeApi struct {
	svc *badge.Service
}

func registerBadgeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := badgeApi{svc: deps.BadgeSvc}

	bg := g.Group("/badges", jwt)
	bg.GET("", api.retrieve)
}

// retrieve returns the actor's pending counters, shaped by their role.
func (api *badgeApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	if actor.IsAdmin() {
		badges, err := api.svc.Admin(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "fetching admin badges")
		}
		return ctx.JSON(http.StatusOK, badges)
	}

	badges, err := api.svc.Learner(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "fetching learner badges")
	}
	return ctx.JSON(http.StatusOK, badges)
}
