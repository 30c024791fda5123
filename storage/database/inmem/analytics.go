package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/tmwangi/sauti/core/analytics"
	"github.com/tmwangi/sauti/core/feedback"
)

type AnalyticsRepo struct {
	db *DB
}

func NewAnalyticsRepo(db *DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

var _ analytics.Repository = (*AnalyticsRepo)(nil)

func inWindow(at time.Time, f analytics.Filter) bool {
	if !f.Since.IsZero() && at.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !at.Before(f.Until) {
		return false
	}
	return true
}

func (r *AnalyticsRepo) FeedbackRows(ctx context.Context, f analytics.Filter) ([]analytics.FeedbackRow, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var rows []analytics.FeedbackRow
	for _, fb := range r.db.feedback {
		if f.LecturerID != 0 && fb.LecturerID != f.LecturerID {
			continue
		}
		if f.CourseCode != "" && fb.CourseCode != f.CourseCode {
			continue
		}
		if !inWindow(fb.CreatedAt, f) {
			continue
		}
		rows = append(rows, analytics.FeedbackRow{
			LecturerID: fb.LecturerID,
			CourseCode: fb.CourseCode,
			Rating:     fb.Rating,
			IsFlagged:  fb.IsFlagged,
			CreatedAt:  fb.CreatedAt,
		})
	}
	return rows, nil
}

func (r *AnalyticsRepo) RejectedAttemptCount(ctx context.Context, f analytics.Filter) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int
	for _, ra := range r.db.attempts {
		if f.LecturerID != 0 && ra.LecturerID != f.LecturerID {
			continue
		}
		if f.CourseCode != "" && ra.CourseCode != f.CourseCode {
			continue
		}
		if inWindow(ra.CreatedAt, f) {
			n++
		}
	}
	return n, nil
}

func (r *AnalyticsRepo) TokenCounts(ctx context.Context, f analytics.Filter) (int, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var issued, used int
	for _, t := range r.db.tokens {
		if f.LecturerID != 0 && t.LecturerID != f.LecturerID {
			continue
		}
		if f.CourseCode != "" && t.CourseCode != f.CourseCode {
			continue
		}
		if !inWindow(t.CreatedAt, f) {
			continue
		}
		issued++
		if t.Used() {
			used++
		}
	}
	return issued, used, nil
}

func (r *AnalyticsRepo) RecentComments(ctx context.Context, f analytics.Filter, limit int) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	matched := make([]feedback.Feedback, 0)
	for _, fb := range r.db.feedback {
		if fb.IsFlagged {
			continue
		}
		if f.LecturerID != 0 && fb.LecturerID != f.LecturerID {
			continue
		}
		if f.CourseCode != "" && fb.CourseCode != f.CourseCode {
			continue
		}
		if !inWindow(fb.CreatedAt, f) {
			continue
		}
		matched = append(matched, fb)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	var comments []string
	for _, fb := range matched {
		if len(comments) == limit {
			break
		}
		text := fb.CleanedText
		if text == "" {
			text = fb.Text
		}
		comments = append(comments, text)
	}
	return comments, nil
}

func (r *AnalyticsRepo) EarliestFeedbackAt(ctx context.Context) (time.Time, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var earliest time.Time
	for _, fb := range r.db.feedback {
		if earliest.IsZero() || fb.CreatedAt.Before(earliest) {
			earliest = fb.CreatedAt
		}
	}
	return earliest, nil
}
