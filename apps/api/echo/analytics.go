package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/analytics"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type analyticsApi struct {
	svc     analytics.Service
	userSvc user.Service
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc analytics.Service, userSvc user.Service) {
	api := analyticsApi{svc: svc, userSvc: userSvc}

	ag := g.Group("/analytics", jwt)
	ag.GET("/dashboard", api.dashboard, staffMiddleware())
}

func (api *analyticsApi) dashboard(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	// teachers get their own slice, admins the whole platform
	instructorID := ""
	if ctxUsr.IsTeacher() {
		instructorID = ctxUsr.ID
	}

	dash, err := api.svc.Dashboard(ctx.Request().Context(), instructorID)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
