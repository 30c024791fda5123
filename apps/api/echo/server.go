// Package echoapi exposes the feedback engine over HTTP.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/analytics"
	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/feedback"
	"github.com/tmwangi/sauti/core/moderation"
	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/core/token"
)

type (
	ServerDeps struct {
		Logger        core.Logger
		StaffSvc      *staff.Service
		CourseSvc     *course.Service
		TokenStore    *token.Store
		Pipeline      *feedback.Pipeline
		ModerationSvc *moderation.Service
		AnalyticsSvc  *analytics.Service
		AuditTrail    *audit.Trail
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !core.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug
	s.app.HideBanner = true

	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerFeedbackAPI(v1, s.deps.Pipeline)
	registerStaffAPI(v1, jwt, s.deps.StaffSvc, s.deps.CourseSvc)
	registerTokenAPI(v1, jwt, s.deps.TokenStore, s.deps.AuditTrail)
	registerModerationAPI(v1, jwt, s.deps.ModerationSvc)
	registerAnalyticsAPI(v1, jwt, s.deps.AnalyticsSvc, s.deps.AuditTrail)
}

func (s *server) Start() {
	if err := s.app.Start(core.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errs
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// signalShutdown lets the error handler trigger a graceful stop on
// unrecoverable integrity errors.
func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Sauti API!")
}
