package echoapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cross-origin is enforced by the JWT hand-shake, not the Origin header
	CheckOrigin: func(r *http.Request) bool { return true },
}

type chatApi struct {
	hub    *chat.Hub
	subApi submissionApi
	logger core.Logger
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, subApi submissionApi, deps ServerDeps) {
	api := chatApi{hub: deps.ChatHub, subApi: subApi, logger: deps.Logger}

	cg := g.Group("/submissions/:id/chat")
	cg.GET("", api.history, jwt)
	cg.POST("", api.send, jwt)

	// browsers cannot set headers on websocket dials; the token rides the query string
	wsJWTConf := newAppJWTConfig(deps.Conf)
	wsJWTConf.TokenLookup = "query:token"
	cg.GET("/ws", api.serve, middleware.JWTWithConfig(wsJWTConf))
}

// Handlers

func (api *chatApi) history(ctx echo.Context) error {
	sub, _, err := api.subApi.loadAccessible(ctx)
	if err != nil {
		return err
	}

	msgs, err := api.hub.History(ctx.Request().Context(), sub.ID)
	if err != nil {
		return errors.Wrap(err, "fetching chat history")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatApi) send(ctx echo.Context) error {
	sub, actor, err := api.subApi.loadAccessible(ctx)
	if err != nil {
		return err
	}

	var data sendMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to sendMessage")
	}

	msg, err := api.hub.Send(ctx.Request().Context(), sub.ID, actor, data.Message)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// serve upgrades the connection and joins the submission's channel. Messages
// received over the socket are persisted and fanned out to every subscriber,
// this connection included.
func (api *chatApi) serve(ctx echo.Context) error {
	sub, actor, err := api.subApi.loadAccessible(ctx)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}

	subscriber := api.hub.Join(sub.ID)
	go api.writePump(conn, subscriber)
	api.readPump(ctx, conn, subscriber, sub.ID, actor)
	return nil
}

// writePump is the connection's single writer; gorilla allows at most one.
func (api *chatApi) writePump(conn *websocket.Conn, subscriber *chat.Subscriber) {
	for msg := range subscriber.Receive() {
		if err := conn.WriteJSON(msg); err != nil {
			break
		}
	}
	_ = conn.Close()
}

func (api *chatApi) readPump(ctx echo.Context, conn *websocket.Conn, subscriber *chat.Subscriber, submissionID string, actor core.Actor) {
	defer func() {
		subscriber.Close()
		_ = conn.Close()
	}()

	reqCtx := ctx.Request().Context()
	for {
		var in sendMessage
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if _, err := api.hub.Send(reqCtx, submissionID, actor, in.Message); err != nil {
			// stored nothing, broadcast nothing; the sender retries
			api.logger.Warn(fmt.Sprintf("chat: message not accepted: %v", err))
		}
	}
}

type sendMessage struct {
	Message string `json:"message"`
}
