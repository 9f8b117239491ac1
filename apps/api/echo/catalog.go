package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core/catalog"
)

type catalogApi struct {
	svc      *catalog.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := catalogApi{svc: deps.CatalogSvc, validate: deps.Validate}

	tg := g.Group("/topics", jwt)
	tg.GET("", api.queryTopics)
	tg.POST("", api.createTopic, adminMiddleware())
	tg.GET("/:id", api.retrieveTopic)
	tg.DELETE("/:id", api.destroyTopic, adminMiddleware())
	tg.GET("/:id/questions", api.queryTopicQuestions)

	qg := g.Group("/questions", jwt)
	qg.GET("", api.queryQuestions)
	qg.POST("", api.createQuestion, adminMiddleware())
	qg.GET("/:id", api.retrieveQuestion)
	qg.DELETE("/:id", api.destroyQuestion, adminMiddleware())
}

// Topic handlers

func (api *catalogApi) createTopic(ctx echo.Context) error {
	var data catalog.NewTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	topic, err := api.svc.CreateTopic(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating topic")
	}
	return ctx.JSON(http.StatusCreated, topic)
}

func (api *catalogApi) queryTopics(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	topics, err := api.svc.QueryTopics(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying topics")
	}
	if topics == nil {
		topics = []catalog.Topic{}
	}
	return ctx.JSON(http.StatusOK, topics)
}

func (api *catalogApi) retrieveTopic(ctx echo.Context) error {
	topic, err := api.svc.GetTopicByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, topic)
}

func (api *catalogApi) destroyTopic(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	if _, err := api.svc.GetTopicByID(reqCtx, ctx.Param("id")); err != nil {
		return err
	}
	if err := api.svc.DeleteTopic(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting topic")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryTopicQuestions(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	if _, err := api.svc.GetTopicByID(reqCtx, ctx.Param("id")); err != nil {
		return err
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	questions, err := api.svc.QueryQuestions(reqCtx, ctx.Param("id"), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []catalog.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

// Question handlers

func (api *catalogApi) createQuestion(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data catalog.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.CreateQuestion(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *catalogApi) queryQuestions(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	questions, err := api.svc.QueryQuestions(ctx.Request().Context(), ctx.QueryParam("topic_id"), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []catalog.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *catalogApi) retrieveQuestion(ctx echo.Context) error {
	q, err := api.svc.GetQuestionByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *catalogApi) destroyQuestion(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	if _, err := api.svc.GetQuestionByID(reqCtx, ctx.Param("id")); err != nil {
		return err
	}
	if err := api.svc.DeleteQuestion(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}
