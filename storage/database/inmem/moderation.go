package inmem

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/tmwangi/sauti/core/moderation"
)

type ModerationRepo struct {
	db *DB
}

func NewModerationRepo(db *DB) *ModerationRepo { return &ModerationRepo{db: db} }

var _ moderation.Repository = (*ModerationRepo)(nil)

func (r *ModerationRepo) PendingFlaggedFeedback(ctx context.Context) ([]moderation.Item, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var items []moderation.Item
	for _, fb := range r.db.feedback {
		if !fb.IsFlagged {
			continue
		}
		item := moderation.Item{
			Kind:       moderation.KindFeedback,
			ID:         fb.ID,
			LecturerID: fb.LecturerID,
			CourseCode: fb.CourseCode,
			SessionKey: fb.SessionKey,
			Comment:    fb.Text,
			Rating:     fb.Rating,
			CreatedAt:  fb.CreatedAt,
		}
		if a, ok := r.db.lecturerByID(fb.LecturerID); ok {
			item.LecturerEmail = a.Email
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *ModerationRepo) PendingRejectedAttempts(ctx context.Context) ([]moderation.Item, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var items []moderation.Item
	for _, ra := range r.db.attempts {
		if ra.IsReviewed {
			continue
		}
		item := moderation.Item{
			Kind:       moderation.KindRejectedAttempt,
			ID:         ra.ID,
			LecturerID: ra.LecturerID,
			CourseCode: ra.CourseCode,
			SessionKey: ra.SessionKey,
			Comment:    ra.Text,
			Reason:     ra.Reason,
			CreatedAt:  ra.CreatedAt,
		}
		if a, ok := r.db.lecturerByID(ra.LecturerID); ok {
			item.LecturerEmail = a.Email
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *ModerationRepo) DismissFlag(ctx context.Context, feedbackID string, reviewerID int, note string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i := range r.db.feedback {
		fb := &r.db.feedback[i]
		if fb.ID != feedbackID || !fb.IsFlagged {
			continue
		}
		fb.IsFlagged = false
		r.db.flagReviews[feedbackID] = flagReview{
			feedbackID: feedbackID,
			reviewerID: reviewerID,
			note:       note,
			reviewedAt: at,
		}
		return nil
	}
	return moderation.ErrNotFound
}

func (r *ModerationRepo) DismissAttempt(ctx context.Context, attemptID string, reviewerID int, note string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i := range r.db.attempts {
		ra := &r.db.attempts[i]
		if ra.ID != attemptID {
			continue
		}
		if ra.IsReviewed {
			return moderation.ErrNotFound
		}
		ra.IsReviewed = true
		ra.ReviewedBy = null.IntFrom(reviewerID)
		ra.ReviewedAt = null.TimeFrom(at)
		ra.ReviewNote = null.StringFrom(note)
		return nil
	}
	return moderation.ErrNotFound
}

func (r *ModerationRepo) PendingCount(ctx context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int
	for _, fb := range r.db.feedback {
		if fb.IsFlagged {
			n++
		}
	}
	for _, ra := range r.db.attempts {
		if !ra.IsReviewed {
			n++
		}
	}
	return n, nil
}
