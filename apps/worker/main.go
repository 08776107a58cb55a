package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/certificate"
	"github.com/Digitalguyco/convade-backend/core/notification"
	"github.com/Digitalguyco/convade-backend/core/quiz"
	"github.com/Digitalguyco/convade-backend/core/school"
	"github.com/Digitalguyco/convade-backend/core/user"
	emailsvc "github.com/Digitalguyco/convade-backend/services/email"
	logsvc "github.com/Digitalguyco/convade-backend/services/logger"
	"github.com/Digitalguyco/convade-backend/storage/database"
	sqlxrepos "github.com/Digitalguyco/convade-backend/storage/database/sqlx"
)

// The worker runs the recurring maintenance jobs: expiring overdue
// invitations, registration codes, timed test attempts and certificates,
// pruning stale notifications and mailing digests.
func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "WORKER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()
	sdb := sqlx.NewDb(db, "postgres")

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(sdb), mailSvc, conf)
	schSvc := school.NewService(sqlxrepos.NewSchoolRepository(sdb), usrSvc, mailSvc)
	quizSvc := quiz.NewService(sqlxrepos.NewQuizRepository(sdb))
	certSvc := certificate.NewService(sqlxrepos.NewCertificateRepository(sdb), usrSvc, mailSvc, conf)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(sdb), usrSvc, mailSvc)

	core.ParseEmailTemplates(conf, logger)

	cronLogger := cron.PrintfLogger(log.New(os.Stdout, "CRON : ", log.LstdFlags))
	c := cron.New(
		cron.WithChain(cron.SkipIfStillRunning(cronLogger), cron.Recover(cronLogger)),
	)

	mustAddJob(c, logger, "@hourly", "expire-invitations", func(ctx context.Context) (int, error) {
		return schSvc.ExpireOverdueInvitations(ctx)
	})
	mustAddJob(c, logger, "@hourly", "expire-registration-codes", func(ctx context.Context) (int, error) {
		return schSvc.ExpireOverdueRegistrationCodes(ctx)
	})
	mustAddJob(c, logger, "@every 5m", "expire-test-attempts", func(ctx context.Context) (int, error) {
		return quizSvc.ExpireOverdueAttempts(ctx)
	})
	mustAddJob(c, logger, "@daily", "expire-certificates", func(ctx context.Context) (int, error) {
		return certSvc.ExpireOverdueCertificates(ctx)
	})
	mustAddJob(c, logger, "@daily", "delete-expired-notifications", func(ctx context.Context) (int, error) {
		return notifSvc.DeleteExpired(ctx)
	})
	mustAddJob(c, logger, "@daily", "send-daily-digests", func(ctx context.Context) (int, error) {
		return notifSvc.SendDigests(ctx, notification.DigestDaily)
	})
	mustAddJob(c, logger, "@weekly", "send-weekly-digests", func(ctx context.Context) (int, error) {
		return notifSvc.SendDigests(ctx, notification.DigestWeekly)
	})

	logger.Info(fmt.Sprintf("Worker starting : version %q", conf.Build))
	defer logger.Info("Worker stopped")

	c.Start()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// wait for running jobs to finish
	<-c.Stop().Done()
}

func mustAddJob(c *cron.Cron, logger core.Logger, spec, name string, job func(ctx context.Context) (int, error)) {
	_, err := c.AddFunc(spec, func() {
		n, err := job(context.Background())
		if err != nil {
			logger.Error(fmt.Sprintf("%s: %v", name, err), err)
			return
		}
		if n > 0 {
			logger.Info(fmt.Sprintf("%s: processed %d", name, n))
		}
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("adding job %s: %v", name, err), err)
	}
}
