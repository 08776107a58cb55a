package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/payment"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type paymentApi struct {
	svc      payment.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc payment.Service, userSvc user.Service, validate *validator.Validate) {
	api := paymentApi{svc: svc, userSvc: userSvc, validate: validate}

	pg := g.Group("/payments", jwt)

	pg.POST("/discounts", api.createDiscount, adminMiddleware())
	pg.GET("/discounts", api.queryDiscounts, adminMiddleware())
	pg.GET("/discounts/:code", api.retrieveDiscount)
	pg.POST("/discounts/:id/deactivate", api.deactivateDiscount, adminMiddleware())

	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.POST("/:id/complete", api.complete, adminMiddleware())
	pg.POST("/:id/fail", api.fail, adminMiddleware())
	pg.POST("/:id/cancel", api.cancel)

	pg.POST("/refunds", api.refund, adminMiddleware())
	pg.GET("/:id/refunds", api.queryRefunds, adminMiddleware())
}

// Discounts

func (api *paymentApi) createDiscount(ctx echo.Context) error {
	var data payment.NewDiscount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDiscount")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	d, err := api.svc.CreateDiscount(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating discount")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *paymentApi) queryDiscounts(ctx echo.Context) error {
	activeOnly := ctx.QueryParam("all") == ""
	discounts, err := api.svc.QueryDiscounts(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying discounts")
	}
	if discounts == nil {
		discounts = []payment.Discount{}
	}
	return ctx.JSON(http.StatusOK, discounts)
}

func (api *paymentApi) retrieveDiscount(ctx echo.Context) error {
	d, err := api.svc.GetDiscountByCode(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return httpNotFound(err, payment.ErrDiscountNotFound)
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *paymentApi) deactivateDiscount(ctx echo.Context) error {
	d, err := api.svc.DeactivateDiscount(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, payment.ErrDiscountNotFound)
	}
	return ctx.JSON(http.StatusOK, d)
}

// Payments

func (api *paymentApi) create(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pmt, err := api.svc.CreatePayment(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating payment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

func (api *paymentApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	userID := ctx.QueryParam("user_id")
	// non-staff only see their own payments
	if !ctxUsr.IsAdmin() {
		userID = ctxUsr.ID
	}

	pmts, err := api.svc.Query(ctx.Request().Context(), userID, ctx.QueryParam("course_id"), ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if pmts == nil {
		pmts = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, pmts)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	pmt, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, payment.ErrNotFound)
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && pmt.UserID != ctxUsr.ID {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *paymentApi) complete(ctx echo.Context) error {
	var data CompletePaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompletePaymentRequest")
	}

	pmt, err := api.svc.CompletePayment(ctx.Request().Context(), ctx.Param("id"), data.ExternalID)
	if err != nil {
		return httpNotFound(err, payment.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *paymentApi) fail(ctx echo.Context) error {
	pmt, err := api.svc.FailPayment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, payment.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *paymentApi) cancel(ctx echo.Context) error {
	pmt, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, payment.ErrNotFound)
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && pmt.UserID != ctxUsr.ID {
		return errHttpNotFound
	}

	pmt, err = api.svc.CancelPayment(ctx.Request().Context(), pmt.ID)
	if err != nil {
		return httpNotFound(err, payment.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, pmt)
}

// Refunds

func (api *paymentApi) refund(ctx echo.Context) error {
	var data payment.NewRefund
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRefund")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ref, err := api.svc.Refund(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return httpNotFound(err, payment.ErrNotFound)
	}
	return ctx.JSON(http.StatusCreated, ref)
}

func (api *paymentApi) queryRefunds(ctx echo.Context) error {
	refs, err := api.svc.QueryRefunds(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying refunds")
	}
	if refs == nil {
		refs = []payment.Refund{}
	}
	return ctx.JSON(http.StatusOK, refs)
}

type CompletePaymentRequest struct {
	ExternalID string `json:"external_id"`
}
