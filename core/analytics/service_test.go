package analytics_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type statsFixture struct {
	svc      *analytics.Service
	pipeline *feedback.Pipeline
	store    *token.Store
	staffSvc *staff.Service
	fbRepo   *inmem.FeedbackRepo
	cal      semester.Calendar
	lecturer staff.Account
}

func newStatsFixture(t *testing.T) *statsFixture {
	t.Helper()
	ctx := context.Background()

	db := inmem.NewDB()
	trail := audit.NewTrail(inmem.NewAuditRepo(db))
	staffSvc := staff.NewService(inmem.NewStaffRepo(db))
	courseSvc := course.NewService(inmem.NewCourseRepo(db), staffSvc, trail)
	cal := semester.NewAcademicCalendar()

	lecturer, err := staffSvc.Create(ctx, staff.NewAccount{
		Email: "awesome.lecturer@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
	})
	require.NoError(t, err)
	_, err = courseSvc.Assign(ctx, 0, course.NewAssignment{LecturerID: lecturer.ID, CourseCode: "CSC 101"})
	require.NoError(t, err)

	classifier := screening.NewLexiconClassifier(
		core.Conf.ExtraProfanity, core.Conf.Watchlist, core.Conf.MinCommentLength,
	)
	store := token.NewStore(inmem.NewTokenRepo(db), courseSvc, cal, trail, 2*time.Minute)
	fbRepo := inmem.NewFeedbackRepo(db)
	stdLogger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	pipeline := feedback.NewPipeline(store, fbRepo, classifier, emailsvc.NewMockService(), stdLogger)
	modSvc := moderation.NewService(inmem.NewModerationRepo(db), trail)

	return &statsFixture{
		svc:      analytics.NewService(inmem.NewAnalyticsRepo(db), staffSvc, courseSvc, modSvc, cal),
		pipeline: pipeline,
		store:    store,
		staffSvc: staffSvc,
		fbRepo:   fbRepo,
		cal:      cal,
		lecturer: lecturer,
	}
}

// seed backdates n feedback rows with the given ratings into win for the
// lecturer+course pair, without touching tokens.
func (fix *statsFixture) seed(lecturerID int, courseCode string, win semester.Window, flagged bool, ratings ...int) {
	for i, rating := range ratings {
		fix.fbRepo.Seed(feedback.Feedback{
			ID:         fmt.Sprintf("seed-%s-%d-%d", win.Value, lecturerID, i),
			LecturerID: lecturerID,
			CourseCode: courseCode,
			SessionKey: "seeded",
			Rating:     rating,
			Text:       "seeded feedback row",
			IsFlagged:  flagged,
			Semester:   win.Value,
			CreatedAt:  win.Start.Add(time.Duration(i) * time.Hour),
		})
	}
}

func TestServiceLecturerDashboard(t *testing.T) {
	ctx := context.Background()
	fix := newStatsFixture(t)

	cur := fix.cal.At(time.Now().UTC())
	prev := fix.cal.Prev(cur)

	fix.seed(fix.lecturer.ID, "CSC 101", cur, false, 4, 5, 4)
	fix.seed(fix.lecturer.ID, "CSC 101", prev, false, 3, 4)

	t.Run("current semester with delta", func(t *testing.T) {
		d, err := fix.svc.LecturerDashboard(ctx, fix.lecturer.ID, analytics.Query{})
		require.NoError(t, err)
		assert.Equal(t, cur.Value, d.Semester)
		assert.Equal(t, 3, d.FeedbackCount)
		require.NotNil(t, d.AvgRating)
		assert.InDelta(t, 4.33, *d.AvgRating, 0.001)
		require.NotNil(t, d.Delta)
		assert.InDelta(t, 0.83, *d.Delta, 0.001) // 4.33 - 3.5
		assert.Equal(t, [5]int{0, 0, 0, 2, 1}, d.Histogram)
		assert.InDelta(t, 100.0, d.PositivePct, 0.001)
		assert.Zero(t, d.NeutralPct)
		assert.Zero(t, d.NegativePct)
		require.Len(t, d.Courses, 1)
		assert.Equal(t, "CSC 101", d.Courses[0].CourseCode)
	})

	t.Run("previous semester has no delta", func(t *testing.T) {
		d, err := fix.svc.LecturerDashboard(ctx, fix.lecturer.ID, analytics.Query{Semester: prev.Value})
		require.NoError(t, err)
		require.NotNil(t, d.AvgRating)
		assert.InDelta(t, 3.5, *d.AvgRating, 0.001)
		assert.Nil(t, d.Delta)
	})

	t.Run("empty semester", func(t *testing.T) {
		old := fix.cal.Prev(prev)
		d, err := fix.svc.LecturerDashboard(ctx, fix.lecturer.ID, analytics.Query{Semester: old.Value})
		require.NoError(t, err)
		assert.Zero(t, d.FeedbackCount)
		assert.Nil(t, d.AvgRating)
		assert.Nil(t, d.Delta)
		assert.Zero(t, d.PositivePct)
		assert.Zero(t, d.NeutralPct)
		assert.Zero(t, d.NegativePct)

		// assigned courses still listed, with nothing to show
		require.Len(t, d.Courses, 1)
		assert.Equal(t, "CSC 101", d.Courses[0].CourseCode)
		assert.Zero(t, d.Courses[0].FeedbackCount)
		assert.Nil(t, d.Courses[0].AvgRating)
	})

	t.Run("sentiment split", func(t *testing.T) {
		other, err := fix.staffSvc.Create(ctx, staff.NewAccount{
			Email: "other.lecturer@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
		})
		require.NoError(t, err)
		fix.seed(other.ID, "MAT 202", cur, false, 5, 4, 3, 2, 1)

		d, err := fix.svc.LecturerDashboard(ctx, other.ID, analytics.Query{})
		require.NoError(t, err)
		assert.InDelta(t, 40.0, d.PositivePct, 0.001)
		assert.InDelta(t, 20.0, d.NeutralPct, 0.001)
		assert.InDelta(t, 40.0, d.NegativePct, 0.001)
	})

	t.Run("bad semester value", func(t *testing.T) {
		_, err := fix.svc.LecturerDashboard(ctx, fix.lecturer.ID, analytics.Query{Semester: "SUMMER-2025"})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("flagged feedback still counts", func(t *testing.T) {
		fix.seed(fix.lecturer.ID, "CSC 101", cur, true, 1)
		d, err := fix.svc.LecturerDashboard(ctx, fix.lecturer.ID, analytics.Query{})
		require.NoError(t, err)
		assert.Equal(t, 4, d.FeedbackCount)
		assert.Equal(t, 1, d.FlaggedCount)
		assert.Len(t, d.RecentComments, 3) // flagged comments stay out of the feed
	})
}

func TestServiceOverview(t *testing.T) {
	ctx := context.Background()
	fix := newStatsFixture(t)

	batch, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
		LecturerID: fix.lecturer.ID, CourseCode: "CSC 101", Quantity: 4,
	})
	require.NoError(t, err)

	for i, text := range []string{
		"Clear explanations and very useful office hours.",
		"The pace was reasonable and examples helped a lot.",
	} {
		_, err := fix.pipeline.Submit(ctx, feedback.NewSubmission{Token: batch.Tokens[i], Rating: 4 + i%2, Text: text})
		require.NoError(t, err)
	}
	_, err = fix.pipeline.Submit(ctx, feedback.NewSubmission{
		Token: batch.Tokens[2], Rating: 1, Text: "This lecturer is fucking hopeless honestly.",
	})
	require.Error(t, err)

	o, err := fix.svc.Overview(ctx, analytics.Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, o.FeedbackCount)
	assert.Equal(t, 1, o.RejectedAttempts)
	assert.InDelta(t, 33.33, o.ToxicityRatePct, 0.001)
	assert.Equal(t, 4, o.TokensIssued)
	assert.Equal(t, 2, o.TokensUsed)
	assert.InDelta(t, 50.0, o.ParticipationPct, 0.001)
	assert.Equal(t, 1, o.PendingReview) // the rejected attempt
	require.NotNil(t, o.AvgRating)
	assert.InDelta(t, 4.5, *o.AvgRating, 0.001)
}

func TestServiceOverviewEmpty(t *testing.T) {
	ctx := context.Background()
	fix := newStatsFixture(t)

	o, err := fix.svc.Overview(ctx, analytics.Query{})
	require.NoError(t, err)
	assert.Zero(t, o.FeedbackCount)
	assert.Nil(t, o.AvgRating)
	assert.Zero(t, o.ToxicityRatePct)
	assert.Zero(t, o.ParticipationPct)
}

func TestServiceLeaderboard(t *testing.T) {
	ctx := context.Background()
	fix := newStatsFixture(t)
	cur := fix.cal.At(time.Now().UTC())

	second, err := fix.staffSvc.Create(ctx, staff.NewAccount{
		Email: "brilliant.colleague@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
	})
	require.NoError(t, err)
	third, err := fix.staffSvc.Create(ctx, staff.NewAccount{
		Email: "quiet.colleague@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
	})
	require.NoError(t, err)

	fix.seed(fix.lecturer.ID, "CSC 101", cur, false, 4, 4) // avg 4.0
	fix.seed(second.ID, "MTH 202", cur, false, 5, 4)       // avg 4.5

	t.Run("ordering", func(t *testing.T) {
		board, err := fix.svc.Leaderboard(ctx, analytics.Query{})
		require.NoError(t, err)
		require.Len(t, board, 3)
		assert.Equal(t, second.ID, board[0].LecturerID)
		assert.Equal(t, fix.lecturer.ID, board[1].LecturerID)
		// no feedback sorts last, avg stays nil
		assert.Equal(t, third.ID, board[2].LecturerID)
		assert.Nil(t, board[2].AvgRating)

		for i, row := range board {
			assert.Equal(t, i+1, row.Rank)
		}
	})

	t.Run("tie breaks on count then id", func(t *testing.T) {
		fourth, err := fix.staffSvc.Create(ctx, staff.NewAccount{
			Email: "tied.colleague@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
		})
		require.NoError(t, err)
		fix.seed(fourth.ID, "PHY 303", cur, false, 4, 4, 4) // avg 4.0, more feedback

		board, err := fix.svc.Leaderboard(ctx, analytics.Query{})
		require.NoError(t, err)
		require.Len(t, board, 4)
		assert.Equal(t, fourth.ID, board[1].LecturerID)
		assert.Equal(t, fix.lecturer.ID, board[2].LecturerID)
	})

	t.Run("email prefix search", func(t *testing.T) {
		board, err := fix.svc.Leaderboard(ctx, analytics.Query{Search: "BRILL"})
		require.NoError(t, err)
		require.Len(t, board, 1)
		assert.Equal(t, second.Email, board[0].LecturerEmail)
	})
}

func TestServiceSemesterSummary(t *testing.T) {
	ctx := context.Background()
	fix := newStatsFixture(t)
	cur := fix.cal.At(time.Now().UTC())

	second, err := fix.staffSvc.Create(ctx, staff.NewAccount{
		Email: "brilliant.colleague@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
	})
	require.NoError(t, err)

	fix.seed(fix.lecturer.ID, "CSC 101", cur, false, 4, 5)
	fix.seed(fix.lecturer.ID, "CSC 305", cur, true, 2)
	fix.seed(second.ID, "MTH 202", cur, false, 3)

	rows, err := fix.svc.SemesterSummary(ctx, analytics.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// ordered by email then course code
	assert.Equal(t, "awesome.lecturer@test.cd", rows[0].LecturerEmail)
	assert.Equal(t, "CSC 101", rows[0].CourseCode)
	assert.Equal(t, 2, rows[0].FeedbackCount)
	require.NotNil(t, rows[0].AvgRating)
	assert.InDelta(t, 4.5, *rows[0].AvgRating, 0.001)

	assert.Equal(t, "CSC 305", rows[1].CourseCode)
	assert.Equal(t, 1, rows[1].FlaggedCount)

	assert.Equal(t, "brilliant.colleague@test.cd", rows[2].LecturerEmail)
}

func TestServiceSemesters(t *testing.T) {
	ctx := context.Background()
	fix := newStatsFixture(t)
	cur := fix.cal.At(time.Now().UTC())

	t.Run("no feedback yet", func(t *testing.T) {
		wins, err := fix.svc.Semesters(ctx)
		require.NoError(t, err)
		require.Len(t, wins, 1)
		assert.Equal(t, cur.Value, wins[0].Value)
	})

	t.Run("spans back to the earliest feedback", func(t *testing.T) {
		twoBack := fix.cal.Prev(fix.cal.Prev(cur))
		fix.seed(fix.lecturer.ID, "CSC 101", twoBack, false, 4)

		wins, err := fix.svc.Semesters(ctx)
		require.NoError(t, err)
		require.Len(t, wins, 3)
		assert.Equal(t, cur.Value, wins[0].Value)
		assert.Equal(t, twoBack.Value, wins[2].Value)
	})
}
