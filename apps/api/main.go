package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/tmwangi/sauti/apps/api/echo"
	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/analytics"
	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/feedback"
	"github.com/tmwangi/sauti/core/moderation"
	"github.com/tmwangi/sauti/core/screening"
	"github.com/tmwangi/sauti/core/semester"
	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/core/token"
	emailsvc "github.com/tmwangi/sauti/services/email"
	logsvc "github.com/tmwangi/sauti/services/logger"
	"github.com/tmwangi/sauti/storage/database"
	"github.com/tmwangi/sauti/storage/database/postgres"
)

func main() {
	conf := core.Conf

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// =========================================================================
	// Set up DB

	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	sqlDB, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Error("failed to close database", err)
		}
	}()
	if err := database.Migrate(sqlDB); err != nil {
		logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	db := sqlx.NewDb(sqlDB, "postgres")

	// =========================================================================
	// Set up services

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	cal := semester.NewAcademicCalendar()
	trail := audit.NewTrail(postgres.NewAuditRepo(db))
	staffSvc := staff.NewService(postgres.NewStaffRepo(db))
	courseSvc := course.NewService(postgres.NewCourseRepo(db), staffSvc, trail)
	tokenStore := token.NewStore(postgres.NewTokenRepo(db), courseSvc, cal, trail, conf.TokenReservationTTL)
	classifier := screening.NewLexiconClassifier(conf.ExtraProfanity, conf.Watchlist, conf.MinCommentLength)
	pipeline := feedback.NewPipeline(tokenStore, postgres.NewFeedbackRepo(db), classifier, mailSvc, logger)
	moderationSvc := moderation.NewService(postgres.NewModerationRepo(db), trail)
	analyticsSvc := analytics.NewService(postgres.NewAnalyticsRepo(db), staffSvc, courseSvc, moderationSvc, cal)

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Logger:        logger,
		StaffSvc:      staffSvc,
		CourseSvc:     courseSvc,
		TokenStore:    tokenStore,
		Pipeline:      pipeline,
		ModerationSvc: moderationSvc,
		AnalyticsSvc:  analyticsSvc,
		AuditTrail:    trail,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err := server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
