package analytics

import (
	"time"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/course"
)

// Filter bounds an aggregation query. Since is inclusive, Until exclusive,
// matching the semester windows.
type Filter struct {
	LecturerID int
	CourseCode string
	Since      time.Time
	Until      time.Time
}

// FeedbackRow is the projection aggregations run over. Comment text never
// leaves the repository through this path.
type FeedbackRow struct {
	LecturerID int
	CourseCode string
	Rating     int
	IsFlagged  bool
	CreatedAt  time.Time
}

// CourseStats is the per-course breakdown on a lecturer dashboard.
type CourseStats struct {
	CourseCode    string   `json:"course_code"`
	FeedbackCount int      `json:"feedback_count"`
	AvgRating     *float64 `json:"avg_rating"`
	FlaggedCount  int      `json:"flagged_count"`
}

// Dashboard is what a lecturer sees for one semester. AvgRating and Delta
// are nil when there is nothing to average; zero would read as a rating.
// The percentage split is always zero-valued, never NaN, on an empty set.
type Dashboard struct {
	Semester      string        `json:"semester"`
	SemesterLabel string        `json:"semester_label"`
	FeedbackCount int           `json:"feedback_count"`
	AvgRating     *float64      `json:"avg_rating"`
	Delta         *float64      `json:"delta"` // vs previous semester
	FlaggedCount  int           `json:"flagged_count"`
	Histogram     [5]int        `json:"histogram"`    // index 0 = 1 star
	PositivePct   float64       `json:"positive_pct"` // ratings >= 4
	NeutralPct    float64       `json:"neutral_pct"`  // rating == 3
	NegativePct   float64       `json:"negative_pct"` // ratings <= 2
	Courses       []CourseStats `json:"courses"`
	// censored text of non-flagged feedback, newest first
	RecentComments []string `json:"recent_comments"`
}

// Overview is the admin KPI card set.
type Overview struct {
	Semester         string   `json:"semester"`
	SemesterLabel    string   `json:"semester_label"`
	FeedbackCount    int      `json:"feedback_count"`
	AvgRating        *float64 `json:"avg_rating"`
	FlaggedCount     int      `json:"flagged_count"`
	RejectedAttempts int      `json:"rejected_attempts"`
	ToxicityRatePct  float64  `json:"toxicity_rate_pct"` // rejected / (rejected + accepted)
	TokensIssued     int      `json:"tokens_issued"`
	TokensUsed       int      `json:"tokens_used"`
	ParticipationPct float64  `json:"participation_pct"` // used / issued
	PendingReview    int      `json:"pending_review"`
}

// LeaderboardRow ranks one lecturer for a semester. Rank is 1-based and
// follows the sort order, ties included.
type LeaderboardRow struct {
	Rank          int      `json:"rank"`
	LecturerID    int      `json:"lecturer_id"`
	LecturerEmail string   `json:"lecturer_email"`
	FeedbackCount int      `json:"feedback_count"`
	AvgRating     *float64 `json:"avg_rating"`
	FlaggedCount  int      `json:"flagged_count"`
}

// SummaryRow is one line of the semester CSV export, keyed by
// lecturer + course.
type SummaryRow struct {
	LecturerEmail string   `json:"lecturer_email"`
	CourseCode    string   `json:"course_code"`
	FeedbackCount int      `json:"feedback_count"`
	AvgRating     *float64 `json:"avg_rating"`
	FlaggedCount  int      `json:"flagged_count"`
}

// Query is the common query-string payload on analytics endpoints.
type Query struct {
	Semester   string `query:"semester" validate:"omitempty,max=20"`
	CourseCode string `query:"course_code" validate:"omitempty,max=50"`
	Search     string `query:"search" validate:"omitempty,max=254"`
}

func (q *Query) Clean() error {
	q.Semester = core.CleanString(q.Semester)
	q.CourseCode = course.NormalizeCode(q.CourseCode)
	q.Search = core.CleanString(q.Search, true)
	return core.Validate.Struct(q)
}
