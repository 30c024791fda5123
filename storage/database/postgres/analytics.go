package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmwangi/sauti/core/analytics"
)

type AnalyticsRepo struct {
	db *sqlx.DB
}

func NewAnalyticsRepo(db *sqlx.DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

var _ analytics.Repository = (*AnalyticsRepo)(nil)

func (repo *AnalyticsRepo) FeedbackRows(ctx context.Context, f analytics.Filter) ([]analytics.FeedbackRow, error) {
	const q = `
	SELECT lecturer_id, course_code, rating, is_flagged, created_at
	FROM feedback
	WHERE ($1 = 0 OR lecturer_id = $1)
	  AND ($2 = '' OR course_code = $2)
	  AND ($3::timestamptz IS NULL OR created_at >= $3)
	  AND ($4::timestamptz IS NULL OR created_at < $4)`

	var rows []struct {
		LecturerID int       `db:"lecturer_id"`
		CourseCode string    `db:"course_code"`
		Rating     int       `db:"rating"`
		IsFlagged  bool      `db:"is_flagged"`
		CreatedAt  time.Time `db:"created_at"`
	}
	err := repo.db.SelectContext(ctx, &rows, q,
		f.LecturerID, f.CourseCode, nullableTime(f.Since), nullableTime(f.Until))
	if err != nil {
		return nil, errors.Wrap(err, "querying feedback rows")
	}
	out := make([]analytics.FeedbackRow, len(rows))
	for i, row := range rows {
		out[i] = analytics.FeedbackRow(row)
	}
	return out, nil
}

func (repo *AnalyticsRepo) RejectedAttemptCount(ctx context.Context, f analytics.Filter) (int, error) {
	const q = `
	SELECT COUNT(*)
	FROM rejected_attempt
	WHERE ($1 = 0 OR lecturer_id = $1)
	  AND ($2 = '' OR course_code = $2)
	  AND ($3::timestamptz IS NULL OR created_at >= $3)
	  AND ($4::timestamptz IS NULL OR created_at < $4)`

	var n int
	err := repo.db.GetContext(ctx, &n, q,
		f.LecturerID, f.CourseCode, nullableTime(f.Since), nullableTime(f.Until))
	if err != nil {
		return 0, errors.Wrap(err, "counting rejected attempts")
	}
	return n, nil
}

func (repo *AnalyticsRepo) TokenCounts(ctx context.Context, f analytics.Filter) (int, int, error) {
	const q = `
	SELECT COUNT(*) AS issued,
	       COUNT(*) FILTER (WHERE status = 'used') AS used
	FROM feedback_token
	WHERE ($1 = 0 OR lecturer_id = $1)
	  AND ($2 = '' OR course_code = $2)
	  AND ($3::timestamptz IS NULL OR created_at >= $3)
	  AND ($4::timestamptz IS NULL OR created_at < $4)`

	var row struct {
		Issued int `db:"issued"`
		Used   int `db:"used"`
	}
	err := repo.db.GetContext(ctx, &row, q,
		f.LecturerID, f.CourseCode, nullableTime(f.Since), nullableTime(f.Until))
	if err != nil {
		return 0, 0, errors.Wrap(err, "counting tokens")
	}
	return row.Issued, row.Used, nil
}

func (repo *AnalyticsRepo) RecentComments(ctx context.Context, f analytics.Filter, limit int) ([]string, error) {
	const q = `
	SELECT COALESCE(NULLIF(cleaned_text, ''), text)
	FROM feedback
	WHERE NOT is_flagged
	  AND ($1 = 0 OR lecturer_id = $1)
	  AND ($2 = '' OR course_code = $2)
	  AND ($3::timestamptz IS NULL OR created_at >= $3)
	  AND ($4::timestamptz IS NULL OR created_at < $4)
	ORDER BY created_at DESC
	LIMIT $5`

	var comments []string
	err := repo.db.SelectContext(ctx, &comments, q,
		f.LecturerID, f.CourseCode, nullableTime(f.Since), nullableTime(f.Until), limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying recent comments")
	}
	return comments, nil
}

func (repo *AnalyticsRepo) EarliestFeedbackAt(ctx context.Context) (time.Time, error) {
	const q = `SELECT MIN(created_at) FROM feedback`

	var earliest null.Time
	if err := repo.db.GetContext(ctx, &earliest, q); err != nil {
		return time.Time{}, errors.Wrap(err, "querying earliest feedback")
	}
	if !earliest.Valid {
		return time.Time{}, nil
	}
	return earliest.Time, nil
}
