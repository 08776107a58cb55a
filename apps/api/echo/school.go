package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/school"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type schoolApi struct {
	svc      school.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc school.Service, userSvc user.Service, validate *validator.Validate) {
	api := schoolApi{svc: svc, userSvc: userSvc, validate: validate}

	sg := g.Group("/schools")

	// un-authed endpoints: invitation & registration-code redemption
	sg.POST("/invitations/accept", api.acceptInvitation)
	sg.POST("/register", api.registerWithCode)
	sg.GET("/codes/:code", api.validateCode)

	// authed endpoints
	ag := sg.Group("", jwt)
	ag.POST("", api.create, adminMiddleware())
	ag.GET("", api.query, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update, adminMiddleware())

	ag.POST("/invitations", api.invite, staffMiddleware())
	ag.GET("/:id/invitations", api.queryInvitations, staffMiddleware())
	ag.DELETE("/invitations/:id", api.revokeInvitation, staffMiddleware())

	ag.POST("/codes", api.generateCode, staffMiddleware())
	ag.GET("/:id/codes", api.queryCodes, staffMiddleware())
	ag.POST("/codes/:id/deactivate", api.deactivateCode, staffMiddleware())
}

func (api *schoolApi) create(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) query(ctx echo.Context) error {
	filter := new(school.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.School{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	sch, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, school.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) update(ctx echo.Context) error {
	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return httpNotFound(err, school.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting schools")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Invitations

func (api *schoolApi) invite(ctx echo.Context) error {
	var data school.NewInvitation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvitation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// an invitee cannot be granted a role above the inviter's
	if user.RolePriority(data.Role) > user.RolePriority(ctxUsr.Role) {
		return errHttpForbidden
	}

	inv, err := api.svc.Invite(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating invitation")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *schoolApi) queryInvitations(ctx echo.Context) error {
	invs, err := api.svc.QueryInvitations(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "querying invitations")
	}
	if invs == nil {
		invs = []school.Invitation{}
	}
	return ctx.JSON(http.StatusOK, invs)
}

func (api *schoolApi) revokeInvitation(ctx echo.Context) error {
	inv, err := api.svc.RevokeInvitation(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, school.ErrInvitationNotFound)
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *schoolApi) acceptInvitation(ctx echo.Context) error {
	var data AcceptInvitationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AcceptInvitationRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// email, role and school come from the invitation
	nu := user.NewUser{
		FirstName:       data.FirstName,
		LastName:        data.LastName,
		GradeLevel:      data.GradeLevel,
		Department:      data.Department,
		PhoneNumber:     data.PhoneNumber,
		Password:        data.Password,
		PasswordConfirm: data.PasswordConfirm,
	}
	usr, err := api.svc.AcceptInvitation(ctx.Request().Context(), data.Token, nu)
	if err != nil {
		return httpNotFound(err, school.ErrInvitationNotFound)
	}
	return ctx.JSON(http.StatusCreated, usr)
}

// Registration codes

func (api *schoolApi) generateCode(ctx echo.Context) error {
	var data school.NewRegistrationCode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRegistrationCode")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	code, err := api.svc.GenerateRegistrationCode(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "generating registration code")
	}
	return ctx.JSON(http.StatusCreated, code)
}

func (api *schoolApi) queryCodes(ctx echo.Context) error {
	codes, err := api.svc.QueryRegistrationCodes(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying registration codes")
	}
	if codes == nil {
		codes = []school.RegistrationCode{}
	}
	return ctx.JSON(http.StatusOK, codes)
}

func (api *schoolApi) validateCode(ctx echo.Context) error {
	code, err := api.svc.ValidateRegistrationCode(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return httpNotFound(err, school.ErrRegCodeNotFound)
	}
	return ctx.JSON(http.StatusOK, code)
}

func (api *schoolApi) registerWithCode(ctx echo.Context) error {
	var data RegisterWithCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterWithCodeRequest")
	}
	if data.Code == "" {
		return errHttpNotFound
	}
	if err := data.NewUser.Validate(ctx.Request().Context(), api.validate, api.userSvc); err != nil {
		return err
	}

	usr, err := api.svc.RegisterWithCode(ctx.Request().Context(), data.Code, data.NewUser)
	if err != nil {
		return httpNotFound(err, school.ErrRegCodeNotFound)
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *schoolApi) deactivateCode(ctx echo.Context) error {
	code, err := api.svc.DeactivateRegistrationCode(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, school.ErrRegCodeNotFound)
	}
	return ctx.JSON(http.StatusOK, code)
}

type (
	AcceptInvitationRequest struct {
		Token           string `json:"token" validate:"required"`
		FirstName       string `json:"first_name" validate:"required"`
		LastName        string `json:"last_name" validate:"required"`
		GradeLevel      string `json:"grade_level"`
		Department      string `json:"department"`
		PhoneNumber     string `json:"phone_number" validate:"omitempty,e164"`
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	}

	RegisterWithCodeRequest struct {
		Code string `json:"code"`
		user.NewUser
	}
)

func (ar *AcceptInvitationRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(ar)
}
