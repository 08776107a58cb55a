package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/Digitalguyco/convade-backend/apps/api/echo"
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
	emailsvc "github.com/Digitalguyco/convade-backend/services/email"
	logsvc "github.com/Digitalguyco/convade-backend/services/logger"
	"github.com/Digitalguyco/convade-backend/storage/cache"
	"github.com/Digitalguyco/convade-backend/storage/database"
	sqlxrepos "github.com/Digitalguyco/convade-backend/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	sdb := sqlx.NewDb(db, "postgres")

	// redis is optional; cache-backed features degrade to the database
	redisClient := cache.NewClient(conf.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(sdb), mailSvc, conf)
	schSvc := school.NewService(sqlxrepos.NewSchoolRepository(sdb), usrSvc, mailSvc)
	crsSvc := course.NewService(sqlxrepos.NewCourseRepository(sdb), usrSvc, mailSvc)
	quizSvc := quiz.NewService(sqlxrepos.NewQuizRepository(sdb))

	var leaderboard badge.LeaderboardStore
	if lb := cache.NewLeaderboard(redisClient); lb != nil {
		leaderboard = lb
	}
	badgeSvc := badge.NewService(sqlxrepos.NewBadgeRepository(sdb), leaderboard)

	certSvc := certificate.NewService(sqlxrepos.NewCertificateRepository(sdb), usrSvc, mailSvc, conf)
	paySvc := payment.NewService(sqlxrepos.NewPaymentRepository(sdb), crsSvc, usrSvc, mailSvc)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(sdb), usrSvc, mailSvc)
	helpSvc := helpcenter.NewService(sqlxrepos.NewHelpCenterRepository(sdb), notifSvc, mailSvc, conf)

	var dashCache analytics.Cache
	if dc := cache.NewDashboardCache(redisClient); dc != nil {
		dashCache = dc
	}
	anlSvc := analytics.NewService(sqlxrepos.NewAnalyticsRepository(sdb), dashCache)

	// cross-domain hooks
	crsSvc.SetCompletionHook(func(ctx context.Context, enr course.Enrollment, crs course.Course) {
		if _, err := certSvc.IssueForEnrollment(ctx, enr, crs); err != nil {
			logger.Error(fmt.Sprintf("issuing certificate for enrollment %s: %v", enr.ID, err), err)
		}
		completed, err := crsSvc.QueryEnrollments(ctx, enr.StudentID, "", course.EnrollmentCompleted)
		if err != nil {
			logger.Error(fmt.Sprintf("counting completed courses for %s: %v", enr.StudentID, err), err)
			return
		}
		if err := badgeSvc.EvaluateCourseCompletion(ctx, enr.StudentID, crs.ID, len(completed)); err != nil {
			logger.Error(fmt.Sprintf("evaluating completion badges for %s: %v", enr.StudentID, err), err)
		}
	})
	quizSvc.SetEnrollmentChecker(func(ctx context.Context, studentID, courseID string) error {
		enr, err := crsSvc.GetEnrollment(ctx, studentID, courseID)
		if err != nil || enr.Status != course.EnrollmentActive {
			return core.NewValidationError(quiz.ErrNotEnrolled)
		}
		return nil
	})
	quizSvc.SetResultHook(func(ctx context.Context, res quiz.TestResult, tst quiz.Test) {
		if enr, err := crsSvc.GetEnrollment(ctx, res.StudentID, tst.CourseID); err == nil {
			if _, err = crsSvc.UpdateGrades(ctx, enr.ID, res.BestPercentage, res.BestPercentage); err != nil {
				logger.Error(fmt.Sprintf("updating grades for enrollment %s: %v", enr.ID, err), err)
			}
		}
		if err := badgeSvc.EvaluateTestResult(ctx, res.StudentID, res.BestPercentage, res.IsPassed); err != nil {
			logger.Error(fmt.Sprintf("evaluating score badges for %s: %v", res.StudentID, err), err)
		}
	})
	badgeSvc.SetAwardHook(func(ctx context.Context, usrID string, b badge.Badge) {
		_, err := notifSvc.Notify(ctx, notification.NewNotification{
			UserID:   usrID,
			Category: notification.CategoryBadgeEarned,
			Title:    fmt.Sprintf("Badge earned: %s", b.Name),
			Message:  b.Description,
		})
		if err != nil {
			logger.Error(fmt.Sprintf("notifying badge award to %s: %v", usrID, err), err)
		}
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	badge.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:    conf.Server.Addr,
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			SignalShutdown: func() {
				shutdown <- syscall.SIGTERM
			},
			UserSvc:         usrSvc,
			SchoolSvc:       schSvc,
			CourseSvc:       crsSvc,
			QuizSvc:         quizSvc,
			BadgeSvc:        badgeSvc,
			CertificateSvc:  certSvc,
			PaymentSvc:      paySvc,
			NotificationSvc: notifSvc,
			HelpCenterSvc:   helpSvc,
			AnalyticsSvc:    anlSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
