package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/notification"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type notificationApi struct {
	svc      notification.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc notification.Service, userSvc user.Service, validate *validator.Validate) {
	api := notificationApi{svc: svc, userSvc: userSvc, validate: validate}

	ng := g.Group("/notifications", jwt)

	ng.POST("", api.create, adminMiddleware())
	ng.GET("", api.query)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read-all", api.markAllRead)
	ng.GET("/settings", api.settings)
	ng.PUT("/settings", api.updateSettings)
	ng.POST("/:id/read", api.markRead)
}

func (api *notificationApi) create(ctx echo.Context) error {
	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.Notify(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notification")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *notificationApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	unreadOnly := ctx.QueryParam("unread") != ""
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))

	notifs, err := api.svc.ListForUser(ctx.Request().Context(), ctxUsr.ID, unreadOnly, limit)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	count, err := api.svc.UnreadCount(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, UnreadCountResponse{Count: count})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"), ctxUsr.ID)
	if err != nil {
		return httpNotFound(err, notification.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	count, err := api.svc.MarkAllRead(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, MarkAllReadResponse{Marked: count})
}

func (api *notificationApi) settings(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	s, err := api.svc.GetSettings(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "getting notification settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *notificationApi) updateSettings(ctx echo.Context) error {
	var data notification.UpdateSettings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSettings")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	s, err := api.svc.UpdateSettings(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating notification settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

type (
	UnreadCountResponse struct {
		Count int `json:"count"`
	}

	MarkAllReadResponse struct {
		Marked int `json:"marked"`
	}
)
