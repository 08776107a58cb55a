package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/certificate"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type certificateApi struct {
	svc     certificate.Service
	userSvc user.Service
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc certificate.Service, userSvc user.Service) {
	api := certificateApi{svc: svc, userSvc: userSvc}

	cg := g.Group("/certificates")

	// public verification lookup
	cg.GET("/verify/:code", api.verify)

	ag := cg.Group("", jwt)
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.POST("/:id/revoke", api.revoke, adminMiddleware())
	ag.POST("/:id/download", api.recordDownload)
}

func (api *certificateApi) verify(ctx echo.Context) error {
	res, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *certificateApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	recipientID := ctx.QueryParam("recipient_id")
	// students only see their own certificates
	if ctxUsr.IsStudent() {
		recipientID = ctxUsr.ID
	}

	certs, err := api.svc.Query(ctx.Request().Context(), recipientID, ctx.QueryParam("course_id"), ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "querying certificates")
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *certificateApi) retrieve(ctx echo.Context) error {
	cert, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, certificate.ErrNotFound)
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsStudent() && cert.RecipientID != ctxUsr.ID {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) revoke(ctx echo.Context) error {
	var data RevokeCertificateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RevokeCertificateRequest")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cert, err := api.svc.Revoke(ctx.Request().Context(), ctx.Param("id"), data.Reason, ctxUsr)
	if err != nil {
		return httpNotFound(err, certificate.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) recordDownload(ctx echo.Context) error {
	cert, err := api.svc.RecordDownload(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, certificate.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, cert)
}

type RevokeCertificateRequest struct {
	Reason string `json:"reason"`
}
