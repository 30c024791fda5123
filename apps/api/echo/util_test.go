package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

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
	"github.com/tmwangi/sauti/storage/database/inmem"
)

type testApp struct {
	server Server

	staffSvc  *staff.Service
	courseSvc *course.Service
	store     *token.Store
	pipeline  *feedback.Pipeline
	mail      *emailsvc.MockService
	fbRepo    *inmem.FeedbackRepo

	admin    staff.Account
	lecturer staff.Account
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	db := inmem.NewDB()
	trail := audit.NewTrail(inmem.NewAuditRepo(db))
	staffSvc := staff.NewService(inmem.NewStaffRepo(db))
	courseSvc := course.NewService(inmem.NewCourseRepo(db), staffSvc, trail)
	cal := semester.NewAcademicCalendar()

	admin, err := staffSvc.Create(ctx, staff.NewAccount{
		Email: "admin@test.cd", Password: "secretpwd", Role: staff.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("newTestApp() failed: %v", err)
	}
	lecturer, err := staffSvc.Create(ctx, staff.NewAccount{
		Email: "awesome.lecturer@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
	})
	if err != nil {
		t.Fatalf("newTestApp() failed: %v", err)
	}
	if _, err = courseSvc.Assign(ctx, admin.ID, course.NewAssignment{
		LecturerID: lecturer.ID, CourseCode: "CSC 101",
	}); err != nil {
		t.Fatalf("newTestApp() failed: %v", err)
	}

	classifier := screening.NewLexiconClassifier(
		core.Conf.ExtraProfanity, core.Conf.Watchlist, core.Conf.MinCommentLength,
	)
	store := token.NewStore(inmem.NewTokenRepo(db), courseSvc, cal, trail, 2*time.Minute)
	fbRepo := inmem.NewFeedbackRepo(db)
	mailSvc := emailsvc.NewMockService()
	stdLogger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	pipeline := feedback.NewPipeline(store, fbRepo, classifier, mailSvc, stdLogger)
	modSvc := moderation.NewService(inmem.NewModerationRepo(db), trail)
	statsSvc := analytics.NewService(inmem.NewAnalyticsRepo(db), staffSvc, courseSvc, modSvc, cal)

	server := NewServer(ServerDeps{
		Logger:        stdLogger,
		StaffSvc:      staffSvc,
		CourseSvc:     courseSvc,
		TokenStore:    store,
		Pipeline:      pipeline,
		ModerationSvc: modSvc,
		AnalyticsSvc:  statsSvc,
		AuditTrail:    trail,
	})

	return &testApp{
		server:    server,
		staffSvc:  staffSvc,
		courseSvc: courseSvc,
		store:     store,
		pipeline:  pipeline,
		mail:      mailSvc,
		fbRepo:    fbRepo,
		admin:     admin,
		lecturer:  lecturer,
	}
}

func (app *testApp) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("request() failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

// rawJSONRequest builds the request without sending it, for tests that need
// to tweak headers first.
func rawJSONRequest(t *testing.T, method, path string, body interface{}) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("rawJSONRequest() failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req, httptest.NewRecorder()
}

func (app *testApp) authToken(t *testing.T, acc staff.Account) string {
	t.Helper()
	tok, err := GenerateToken(getAccountClaims(acc))
	if err != nil {
		t.Fatalf("authToken() failed: %v", err)
	}
	return tok
}

// issueTokens shortcuts the admin batch endpoint for tests that just need
// live tokens.
func (app *testApp) issueTokens(t *testing.T, n int) []string {
	t.Helper()
	batch, err := app.store.IssueBatch(context.Background(), app.admin.ID, token.NewBatch{
		LecturerID: app.lecturer.ID, CourseCode: "CSC 101", Quantity: n,
	})
	if err != nil {
		t.Fatalf("issueTokens() failed: %v", err)
	}
	return batch.Tokens
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decodeBody() failed: %v; body: %s", err, rec.Body.String())
	}
}

func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("failed! code = %v; wantCode %v; body: %s", rec.Code, want, rec.Body.String())
	}
}
