// Package analytics computes semester-scoped aggregates for lecturer
// dashboards, the admin overview and CSV exports. All aggregation happens at
// read time; nothing here writes.
package analytics

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/semester"
	"github.com/tmwangi/sauti/core/staff"
)

type (
	Repository interface {
		FeedbackRows(ctx context.Context, f Filter) ([]FeedbackRow, error)
		RejectedAttemptCount(ctx context.Context, f Filter) (int, error)
		TokenCounts(ctx context.Context, f Filter) (issued, used int, err error)
		// EarliestFeedbackAt returns the zero time when no feedback exists.
		EarliestFeedbackAt(ctx context.Context) (time.Time, error)
		// RecentComments returns censored comment text of non-flagged
		// feedback, newest first.
		RecentComments(ctx context.Context, f Filter, limit int) ([]string, error)
	}

	// PendingCounter reports the moderation queue size for the overview
	// badge. *moderation.Service satisfies it.
	PendingCounter interface {
		PendingCount(ctx context.Context) (int, error)
	}

	// CourseLister exposes a lecturer's assigned courses so the dashboard
	// breakdown covers courses with no feedback yet. *course.Service
	// satisfies it.
	CourseLister interface {
		CoursesFor(ctx context.Context, lecturerID int) ([]string, error)
	}

	Service struct {
		repo     Repository
		staffSvc *staff.Service
		courses  CourseLister
		pending  PendingCounter
		cal      semester.Calendar
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, staffSvc *staff.Service, courses CourseLister, pending PendingCounter, cal semester.Calendar) *Service {
	return &Service{
		repo:     repo,
		staffSvc: staffSvc,
		courses:  courses,
		pending:  pending,
		cal:      cal,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// resolveWindow maps an optional semester value to its window, defaulting to
// the semester in progress.
func (svc *Service) resolveWindow(value string) (semester.Window, error) {
	if value == "" {
		return svc.cal.At(svc.nowFunc()), nil
	}
	win, err := svc.cal.Parse(value)
	if err != nil {
		return semester.Window{}, core.NewValidationError(err, core.FieldError{Field: "semester", Error: err.Error()})
	}
	return win, nil
}

// LecturerDashboard aggregates one lecturer's semester, with the rating delta
// against the previous semester. Flagged feedback counts like any other;
// moderation state never bends the numbers.
func (svc *Service) LecturerDashboard(ctx context.Context, lecturerID int, q Query) (Dashboard, error) {
	if err := q.Clean(); err != nil {
		return Dashboard{}, err
	}
	win, err := svc.resolveWindow(q.Semester)
	if err != nil {
		return Dashboard{}, err
	}

	rows, err := svc.repo.FeedbackRows(ctx, Filter{
		LecturerID: lecturerID, CourseCode: q.CourseCode, Since: win.Start, Until: win.End,
	})
	if err != nil {
		return Dashboard{}, err
	}
	prevWin := svc.cal.Prev(win)
	prevRows, err := svc.repo.FeedbackRows(ctx, Filter{
		LecturerID: lecturerID, CourseCode: q.CourseCode, Since: prevWin.Start, Until: prevWin.End,
	})
	if err != nil {
		return Dashboard{}, err
	}

	assigned, err := svc.courses.CoursesFor(ctx, lecturerID)
	if err != nil {
		return Dashboard{}, err
	}
	if q.CourseCode != "" {
		assigned = []string{q.CourseCode}
	}

	d := Dashboard{
		Semester:      win.Value,
		SemesterLabel: win.Label,
		FeedbackCount: len(rows),
		AvgRating:     avgRating(rows),
		Delta:         ratingDelta(rows, prevRows),
		Courses:       courseBreakdown(rows, assigned),
	}
	for _, r := range rows {
		if r.IsFlagged {
			d.FlaggedCount++
		}
		if r.Rating >= 1 && r.Rating <= 5 {
			d.Histogram[r.Rating-1]++
		}
	}
	if total := len(rows); total > 0 {
		d.PositivePct = round2(float64(d.Histogram[3]+d.Histogram[4]) / float64(total) * 100)
		d.NeutralPct = round2(float64(d.Histogram[2]) / float64(total) * 100)
		d.NegativePct = round2(float64(d.Histogram[0]+d.Histogram[1]) / float64(total) * 100)
	}

	d.RecentComments, err = svc.repo.RecentComments(ctx, Filter{
		LecturerID: lecturerID, CourseCode: q.CourseCode, Since: win.Start, Until: win.End,
	}, recentCommentLimit)
	if err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// recentCommentLimit caps the dashboard comment feed.
const recentCommentLimit = 20

// Overview computes the admin KPI cards for one semester.
func (svc *Service) Overview(ctx context.Context, q Query) (Overview, error) {
	if err := q.Clean(); err != nil {
		return Overview{}, err
	}
	win, err := svc.resolveWindow(q.Semester)
	if err != nil {
		return Overview{}, err
	}
	f := Filter{Since: win.Start, Until: win.End}

	rows, err := svc.repo.FeedbackRows(ctx, f)
	if err != nil {
		return Overview{}, err
	}
	rejected, err := svc.repo.RejectedAttemptCount(ctx, f)
	if err != nil {
		return Overview{}, err
	}
	issued, used, err := svc.repo.TokenCounts(ctx, f)
	if err != nil {
		return Overview{}, err
	}
	pending, err := svc.pending.PendingCount(ctx)
	if err != nil {
		return Overview{}, err
	}

	o := Overview{
		Semester:         win.Value,
		SemesterLabel:    win.Label,
		FeedbackCount:    len(rows),
		AvgRating:        avgRating(rows),
		RejectedAttempts: rejected,
		TokensIssued:     issued,
		TokensUsed:       used,
		PendingReview:    pending,
	}
	for _, r := range rows {
		if r.IsFlagged {
			o.FlaggedCount++
		}
	}
	if total := rejected + len(rows); total > 0 {
		o.ToxicityRatePct = round2(float64(rejected) / float64(total) * 100)
	}
	if issued > 0 {
		o.ParticipationPct = round2(float64(used) / float64(issued) * 100)
	}
	return o, nil
}

// Leaderboard ranks lecturers for a semester: average rating first, then
// feedback count, then lecturer ID for a stable tail. Search is a
// case-insensitive email prefix; lecturers without feedback still appear so
// admins see who is not being rated at all.
func (svc *Service) Leaderboard(ctx context.Context, q Query) ([]LeaderboardRow, error) {
	if err := q.Clean(); err != nil {
		return nil, err
	}
	win, err := svc.resolveWindow(q.Semester)
	if err != nil {
		return nil, err
	}

	lecturers, err := svc.staffSvc.Lecturers(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := svc.repo.FeedbackRows(ctx, Filter{Since: win.Start, Until: win.End})
	if err != nil {
		return nil, err
	}

	byLecturer := make(map[int][]FeedbackRow, len(lecturers))
	for _, r := range rows {
		byLecturer[r.LecturerID] = append(byLecturer[r.LecturerID], r)
	}

	board := make([]LeaderboardRow, 0, len(lecturers))
	for _, l := range lecturers {
		if q.Search != "" && !strings.HasPrefix(strings.ToLower(l.Email), q.Search) {
			continue
		}
		lrows := byLecturer[l.ID]
		row := LeaderboardRow{
			LecturerID:    l.ID,
			LecturerEmail: l.Email,
			FeedbackCount: len(lrows),
			AvgRating:     avgRating(lrows),
		}
		for _, r := range lrows {
			if r.IsFlagged {
				row.FlaggedCount++
			}
		}
		board = append(board, row)
	}

	sort.SliceStable(board, func(i, j int) bool {
		a, b := board[i], board[j]
		switch {
		case a.AvgRating == nil && b.AvgRating != nil:
			return false
		case a.AvgRating != nil && b.AvgRating == nil:
			return true
		case a.AvgRating != nil && b.AvgRating != nil && *a.AvgRating != *b.AvgRating:
			return *a.AvgRating > *b.AvgRating
		}
		if a.FeedbackCount != b.FeedbackCount {
			return a.FeedbackCount > b.FeedbackCount
		}
		return a.LecturerID < b.LecturerID
	})
	for i := range board {
		board[i].Rank = i + 1
	}
	return board, nil
}

// SemesterSummary flattens a semester into lecturer+course rows for the CSV
// export, ordered by email then course code.
func (svc *Service) SemesterSummary(ctx context.Context, q Query) ([]SummaryRow, error) {
	if err := q.Clean(); err != nil {
		return nil, err
	}
	win, err := svc.resolveWindow(q.Semester)
	if err != nil {
		return nil, err
	}

	lecturers, err := svc.staffSvc.Lecturers(ctx)
	if err != nil {
		return nil, err
	}
	emails := make(map[int]string, len(lecturers))
	for _, l := range lecturers {
		emails[l.ID] = l.Email
	}

	rows, err := svc.repo.FeedbackRows(ctx, Filter{Since: win.Start, Until: win.End})
	if err != nil {
		return nil, err
	}

	type key struct {
		lecturerID int
		courseCode string
	}
	grouped := make(map[key][]FeedbackRow)
	for _, r := range rows {
		k := key{r.LecturerID, r.CourseCode}
		grouped[k] = append(grouped[k], r)
	}

	out := make([]SummaryRow, 0, len(grouped))
	for k, g := range grouped {
		row := SummaryRow{
			LecturerEmail: emails[k.lecturerID],
			CourseCode:    k.courseCode,
			FeedbackCount: len(g),
			AvgRating:     avgRating(g),
		}
		for _, r := range g {
			if r.IsFlagged {
				row.FlaggedCount++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LecturerEmail != out[j].LecturerEmail {
			return out[i].LecturerEmail < out[j].LecturerEmail
		}
		return out[i].CourseCode < out[j].CourseCode
	})
	return out, nil
}

// Semesters lists every window from the earliest recorded feedback up to the
// current one, newest first. With no feedback yet it returns just the
// current window.
func (svc *Service) Semesters(ctx context.Context) ([]semester.Window, error) {
	current := svc.cal.At(svc.nowFunc())

	earliest, err := svc.repo.EarliestFeedbackAt(ctx)
	if err != nil {
		return nil, err
	}
	if earliest.IsZero() {
		return []semester.Window{current}, nil
	}

	var out []semester.Window
	for win := current; ; win = svc.cal.Prev(win) {
		out = append(out, win)
		if !win.Start.After(earliest) {
			break
		}
	}
	return out, nil
}

func avgRating(rows []FeedbackRow) *float64 {
	if len(rows) == 0 {
		return nil
	}
	var sum int
	for _, r := range rows {
		sum += r.Rating
	}
	avg := round2(float64(sum) / float64(len(rows)))
	return &avg
}

// ratingDelta is nil unless both semesters have feedback to compare.
func ratingDelta(cur, prev []FeedbackRow) *float64 {
	a, b := avgRating(cur), avgRating(prev)
	if a == nil || b == nil {
		return nil
	}
	d := round2(*a - *b)
	return &d
}

// courseBreakdown covers every assigned course, including ones with no
// feedback yet, plus any course that shows up in the rows (an assignment may
// have been removed since the feedback was given).
func courseBreakdown(rows []FeedbackRow, assigned []string) []CourseStats {
	grouped := make(map[string][]FeedbackRow)
	for _, code := range assigned {
		grouped[code] = nil
	}
	for _, r := range rows {
		grouped[r.CourseCode] = append(grouped[r.CourseCode], r)
	}
	out := make([]CourseStats, 0, len(grouped))
	for code, g := range grouped {
		cs := CourseStats{
			CourseCode:    code,
			FeedbackCount: len(g),
			AvgRating:     avgRating(g),
		}
		for _, r := range g {
			if r.IsFlagged {
				cs.FlaggedCount++
			}
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseCode < out[j].CourseCode })
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
