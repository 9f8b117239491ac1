package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core/ledger"
)

type claimApi struct {
	svc      *ledger.Service
	validate *validator.Validate
}

func registerClaimAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := claimApi{svc: deps.LedgerSvc, validate: deps.Validate}

	cg := g.Group("/claims", jwt)
	cg.POST("", api.create)
	cg.POST("/:id/approve", api.approve, adminMiddleware())
	cg.POST("/:id/reject", api.reject, adminMiddleware())

	tg := g.Group("/transactions", jwt)
	tg.GET("", api.query)
	tg.GET("/:id", api.retrieve)
}

// Handlers

func (api *claimApi) create(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data ledger.ClaimRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClaimRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	txn, err := api.svc.RequestClaim(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, txn)
}

func (api *claimApi) approve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	txn, err := api.svc.ApproveClaim(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, txn)
}

func (api *claimApi) reject(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	txn, err := api.svc.RejectClaim(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, txn)
}

func (api *claimApi) query(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	filter := new(ledger.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []ledger.Transaction{})
	}
	if !actor.IsAdmin() {
		// learners only ever see their own ledger
		filter.UserID = actor.ID
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	txns, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	if txns == nil {
		txns = []ledger.Transaction{}
	}
	return ctx.JSON(http.StatusOK, txns)
}

func (api *claimApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	txn, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && txn.UserID != actor.ID {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, txn)
}
