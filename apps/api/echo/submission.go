package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/submission"
)

type submissionApi struct {
	svc      *submission.Service
	validate *validator.Validate
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := submissionApi{svc: deps.SubmissionSvc, validate: deps.Validate}

	sg := g.Group("/submissions", jwt)
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.POST("/:id/approve", api.approve, adminMiddleware())
	sg.POST("/:id/reject", api.reject, adminMiddleware())

	registerChatAPI(g, jwt, api, deps)
}

// Handlers

func (api *submissionApi) create(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data submission.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *submissionApi) query(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	filter := new(submission.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []submission.Submission{})
	}
	if !actor.IsAdmin() {
		// learners only ever see their own submissions
		filter.UserID = actor.ID
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	subs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	sub, _, err := api.loadAccessible(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) approve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	sub, err := api.svc.Approve(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) reject(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	sub, err := api.svc.Reject(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

// loadAccessible fetches the submission and enforces visibility: admins see
// any, learners only their own. Inaccessible records read as not found.
func (api *submissionApi) loadAccessible(ctx echo.Context) (submission.Submission, core.Actor, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return submission.Submission{}, core.Actor{}, errors.Wrap(err, "getting context actor")
	}

	sub, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return submission.Submission{}, actor, err
	}
	if !actor.IsAdmin() && sub.UserID != actor.ID {
		return submission.Submission{}, actor, errHttpNotFound
	}
	return sub, actor, nil
}
