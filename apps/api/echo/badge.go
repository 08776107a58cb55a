package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/badge"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type badgeApi struct {
	svc      badge.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerBadgeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc badge.Service, userSvc user.Service, validate *validator.Validate) {
	api := badgeApi{svc: svc, userSvc: userSvc, validate: validate}

	bg := g.Group("/badges", jwt)

	bg.POST("", api.create, adminMiddleware())
	bg.GET("", api.query)
	bg.DELETE("", api.destroyMultiple, adminMiddleware())
	bg.GET("/leaderboard", api.leaderboard)
	bg.GET("/leaderboard/rank", api.rank)
	bg.GET("/mine", api.queryMine)
	bg.GET("/users/:id", api.queryUserBadges, staffMiddleware())
	bg.GET("/points", api.points)
	bg.POST("/points/spend", api.spendPoints)
	bg.GET("/points/transactions", api.queryTransactions)
	bg.GET("/:id", api.retrieve)
	bg.POST("/:id/deactivate", api.deactivate, adminMiddleware())
	bg.POST("/:id/award", api.award, staffMiddleware())
}

func (api *badgeApi) create(ctx echo.Context) error {
	var data badge.NewBadge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBadge")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	b, err := api.svc.Create(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating badge")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *badgeApi) query(ctx echo.Context) error {
	activeOnly := ctx.QueryParam("all") == ""
	badges, err := api.svc.Query(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying badges")
	}
	if badges == nil {
		badges = []badge.Badge{}
	}
	return ctx.JSON(http.StatusOK, badges)
}

func (api *badgeApi) retrieve(ctx echo.Context) error {
	b, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, badge.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *badgeApi) deactivate(ctx echo.Context) error {
	b, err := api.svc.Deactivate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, badge.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *badgeApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting badges")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *badgeApi) award(ctx echo.Context) error {
	var data AwardBadgeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AwardBadgeRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ub, err := api.svc.Award(ctx.Request().Context(), ctx.Param("id"), data.UserID, ctxUsr)
	if err != nil {
		return httpNotFound(err, badge.ErrNotFound)
	}
	return ctx.JSON(http.StatusCreated, ub)
}

func (api *badgeApi) queryMine(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.respondUserBadges(ctx, ctxUsr.ID)
}

func (api *badgeApi) queryUserBadges(ctx echo.Context) error {
	return api.respondUserBadges(ctx, ctx.Param("id"))
}

func (api *badgeApi) respondUserBadges(ctx echo.Context, userID string) error {
	ubs, err := api.svc.QueryUserBadges(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying user badges")
	}
	if ubs == nil {
		ubs = []badge.UserBadge{}
	}
	return ctx.JSON(http.StatusOK, ubs)
}

// Points

func (api *badgeApi) points(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pts, err := api.svc.GetPoints(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return httpNotFound(err, badge.ErrPointsNotFound)
	}
	return ctx.JSON(http.StatusOK, pts)
}

func (api *badgeApi) spendPoints(ctx echo.Context) error {
	var data SpendPointsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SpendPointsRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pts, err := api.svc.SpendPoints(ctx.Request().Context(), ctxUsr.ID, data.Points, data.Reason)
	if err != nil {
		return httpNotFound(err, badge.ErrPointsNotFound)
	}
	return ctx.JSON(http.StatusOK, pts)
}

func (api *badgeApi) queryTransactions(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	txns, err := api.svc.QueryTransactions(ctx.Request().Context(), ctxUsr.ID, limit)
	if err != nil {
		return errors.Wrap(err, "querying point transactions")
	}
	if txns == nil {
		txns = []badge.PointTransaction{}
	}
	return ctx.JSON(http.StatusOK, txns)
}

// Leaderboard

func (api *badgeApi) leaderboard(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	entries, err := api.svc.Leaderboard(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "querying leaderboard")
	}
	if entries == nil {
		entries = []badge.LeaderboardEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *badgeApi) rank(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rank, err := api.svc.UserRank(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return httpNotFound(err, badge.ErrPointsNotFound)
	}
	return ctx.JSON(http.StatusOK, RankResponse{Rank: rank})
}

type (
	AwardBadgeRequest struct {
		UserID string `json:"user_id" validate:"required"`
	}

	SpendPointsRequest struct {
		Points int    `json:"points" validate:"required,gt=0"`
		Reason string `json:"reason" validate:"required"`
	}

	RankResponse struct {
		Rank int `json:"rank"`
	}
)
