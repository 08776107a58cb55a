package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/helpcenter"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type helpCenterApi struct {
	svc      helpcenter.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerHelpCenterAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc helpcenter.Service, userSvc user.Service, validate *validator.Validate) {
	api := helpCenterApi{svc: svc, userSvc: userSvc, validate: validate}

	hg := g.Group("/help")

	// public knowledge base
	hg.GET("/faqs", api.queryFAQs)
	hg.POST("/faqs/:id/view", api.recordFAQView)

	ag := hg.Group("", jwt)
	ag.POST("/faqs", api.createFAQ, adminMiddleware())
	ag.PUT("/faqs/:id", api.updateFAQ, adminMiddleware())
	ag.POST("/faqs/:id/publish", api.publishFAQ, adminMiddleware())
	ag.DELETE("/faqs", api.destroyFAQs, adminMiddleware())

	ag.POST("/tickets", api.createTicket)
	ag.GET("/tickets", api.queryTickets)
	ag.GET("/tickets/number/:number", api.retrieveTicketByNumber)
	ag.GET("/tickets/:id", api.retrieveTicket)
	ag.POST("/tickets/:id/assign", api.assignTicket, staffMiddleware())
	ag.POST("/tickets/:id/status", api.updateTicketStatus, staffMiddleware())
	ag.POST("/messages", api.addMessage)
	ag.GET("/tickets/:id/messages", api.queryMessages)
}

// Tickets

func (api *helpCenterApi) createTicket(ctx echo.Context) error {
	var data helpcenter.NewTicket
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTicket")
	}
	data.IPAddress = ctx.RealIP()
	data.UserAgent = ctx.Request().UserAgent()
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	t, err := api.svc.CreateTicket(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating ticket")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *helpCenterApi) queryTickets(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := &helpcenter.QueryFilter{
		RequesterID: ctx.QueryParam("requester_id"),
		AssigneeID:  ctx.QueryParam("assignee_id"),
		Status:      ctx.QueryParam("status"),
		Category:    ctx.QueryParam("category"),
		Priority:    ctx.QueryParam("priority"),
	}
	// requesters only see their own tickets
	if ctxUsr.IsStudent() {
		filter.RequesterID = ctxUsr.ID
	}

	tickets, err := api.svc.ListTickets(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying tickets")
	}
	if tickets == nil {
		tickets = []helpcenter.SupportTicket{}
	}
	return ctx.JSON(http.StatusOK, tickets)
}

func (api *helpCenterApi) retrieveTicket(ctx echo.Context) error {
	t, err := api.svc.GetTicketByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, helpcenter.ErrTicketNotFound)
	}
	return api.respondTicket(ctx, t)
}

func (api *helpCenterApi) retrieveTicketByNumber(ctx echo.Context) error {
	t, err := api.svc.GetTicketByNumber(ctx.Request().Context(), ctx.Param("number"))
	if err != nil {
		return httpNotFound(err, helpcenter.ErrTicketNotFound)
	}
	return api.respondTicket(ctx, t)
}

func (api *helpCenterApi) respondTicket(ctx echo.Context, t helpcenter.SupportTicket) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsStudent() && t.RequesterID != ctxUsr.ID {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *helpCenterApi) assignTicket(ctx echo.Context) error {
	var data AssignTicketRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTicketRequest")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	assignee := ctxUsr
	if data.AssigneeID != "" && data.AssigneeID != ctxUsr.ID {
		assignee, err = api.userSvc.GetByID(ctx.Request().Context(), data.AssigneeID)
		if err != nil {
			return httpNotFound(err, user.ErrNotFound)
		}
	}

	t, err := api.svc.AssignTicket(ctx.Request().Context(), ctx.Param("id"), assignee)
	if err != nil {
		return httpNotFound(err, helpcenter.ErrTicketNotFound)
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *helpCenterApi) updateTicketStatus(ctx echo.Context) error {
	var data UpdateTicketStatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTicketStatusRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	t, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), data.Status, data.Resolution, ctxUsr)
	if err != nil {
		return httpNotFound(err, helpcenter.ErrTicketNotFound)
	}
	return ctx.JSON(http.StatusOK, t)
}

// Messages

func (api *helpCenterApi) addMessage(ctx echo.Context) error {
	var data helpcenter.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// requesters cannot post internal notes
	if ctxUsr.IsStudent() {
		data.IsInternal = false
	}

	m, err := api.svc.AddMessage(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return httpNotFound(err, helpcenter.ErrTicketNotFound)
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *helpCenterApi) queryMessages(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	includeInternal := !ctxUsr.IsStudent()
	msgs, err := api.svc.ListMessages(ctx.Request().Context(), ctx.Param("id"), includeInternal)
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []helpcenter.TicketMessage{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

// FAQs

func (api *helpCenterApi) createFAQ(ctx echo.Context) error {
	var data helpcenter.NewFAQ
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFAQ")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.CreateFAQ(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating faq")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *helpCenterApi) queryFAQs(ctx echo.Context) error {
	faqs, err := api.svc.ListFAQs(ctx.Request().Context(), ctx.QueryParam("category"), true /* publishedOnly */)
	if err != nil {
		return errors.Wrap(err, "querying faqs")
	}
	if faqs == nil {
		faqs = []helpcenter.FAQ{}
	}
	return ctx.JSON(http.StatusOK, faqs)
}

func (api *helpCenterApi) updateFAQ(ctx echo.Context) error {
	var data helpcenter.NewFAQ
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFAQ")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.UpdateFAQ(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return httpNotFound(err, helpcenter.ErrFAQNotFound)
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *helpCenterApi) publishFAQ(ctx echo.Context) error {
	f, err := api.svc.PublishFAQ(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, helpcenter.ErrFAQNotFound)
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *helpCenterApi) destroyFAQs(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.DeleteFAQs(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting faqs")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *helpCenterApi) recordFAQView(ctx echo.Context) error {
	if err := api.svc.RecordFAQView(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return httpNotFound(err, helpcenter.ErrFAQNotFound)
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	AssignTicketRequest struct {
		AssigneeID string `json:"assignee_id"`
	}

	UpdateTicketStatusRequest struct {
		Status     string `json:"status" validate:"required,oneof=open in_progress waiting_on_user resolved closed"`
		Resolution string `json:"resolution"`
	}
)
