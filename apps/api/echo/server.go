package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/analytics"
	"github.com/Digitalguyco/convade-backend/core/badge"
	"github.com/Digitalguyco/convade-backend/core/certificate"
	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/helpcenter"
	"github.com/Digitalguyco/convade-backend/core/notification"
	"github.com/Digitalguyco/convade-backend/core/payment"
	"github.com/Digitalguyco/convade-backend/core/quiz"
	"github.com/Digitalguyco/convade-backend/core/school"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		// SignalShutdown gracefully stops the app on unrecoverable errors.
		SignalShutdown func()

		UserSvc         user.Service
		SchoolSvc       school.Service
		CourseSvc       course.Service
		QuizSvc         quiz.Service
		BadgeSvc        badge.Service
		CertificateSvc  certificate.Service
		PaymentSvc      payment.Service
		NotificationSvc notification.Service
		HelpCenterSvc   helpcenter.Service
		AnalyticsSvc    analytics.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf
	initAuth(conf)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.opts.UserSvc, s.opts.Validate)
	registerSchoolAPI(v1, jwt, s.opts.SchoolSvc, s.opts.UserSvc, s.opts.Validate)
	registerCourseAPI(v1, jwt, s.opts.CourseSvc, s.opts.UserSvc, s.opts.Validate)
	registerQuizAPI(v1, jwt, s.opts.QuizSvc, s.opts.UserSvc, s.opts.Validate)
	registerBadgeAPI(v1, jwt, s.opts.BadgeSvc, s.opts.UserSvc, s.opts.Validate)
	registerCertificateAPI(v1, jwt, s.opts.CertificateSvc, s.opts.UserSvc)
	registerPaymentAPI(v1, jwt, s.opts.PaymentSvc, s.opts.UserSvc, s.opts.Validate)
	registerNotificationAPI(v1, jwt, s.opts.NotificationSvc, s.opts.UserSvc, s.opts.Validate)
	registerHelpCenterAPI(v1, jwt, s.opts.HelpCenterSvc, s.opts.UserSvc, s.opts.Validate)
	registerAnalyticsAPI(v1, jwt, s.opts.AnalyticsSvc, s.opts.UserSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Convade API!")
}
