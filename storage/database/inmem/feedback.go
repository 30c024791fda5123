package inmem

import (
	"context"
	"time"

	"github.com/tmwangi/sauti/core/feedback"
)

type FeedbackRepo struct {
	db *DB
}

func NewFeedbackRepo(db *DB) *FeedbackRepo { return &FeedbackRepo{db: db} }

var _ feedback.Repository = (*FeedbackRepo)(nil)

func submissionKey(lockKey, courseCode, sessionKey string) string {
	return lockKey + "|" + courseCode + "|" + sessionKey
}

// CreateCommitted mimics the single transaction the postgres repo runs:
// session lock, feedback insert and token burn all succeed or nothing
// changes.
func (r *FeedbackRepo) CreateCommitted(ctx context.Context, fb feedback.Feedback, reservationID, lockKey string, usedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := ""
	if lockKey != "" {
		key = submissionKey(lockKey, fb.CourseCode, fb.SessionKey)
		if r.db.submissions[key] {
			return feedback.ErrDuplicateSubmission
		}
	}
	if err := r.db.commitReservationLocked(reservationID, usedAt); err != nil {
		return err
	}
	if key != "" {
		r.db.submissions[key] = true
	}
	r.db.feedback = append(r.db.feedback, fb)
	return nil
}

func (r *FeedbackRepo) CreateRejectedAttempt(ctx context.Context, ra feedback.RejectedAttempt) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.attempts = append(r.db.attempts, ra)
	return nil
}

func (r *FeedbackRepo) HasSessionSubmission(ctx context.Context, lockKey, courseCode, sessionKey string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return r.db.submissions[submissionKey(lockKey, courseCode, sessionKey)], nil
}

// Seed inserts feedback rows directly, bypassing the token lifecycle.
// Test helper for backdating data into past semesters.
func (r *FeedbackRepo) Seed(fbs ...feedback.Feedback) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.feedback = append(r.db.feedback, fbs...)
}

// SeedAttempts inserts rejected attempts directly. Test helper.
func (r *FeedbackRepo) SeedAttempts(ras ...feedback.RejectedAttempt) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.attempts = append(r.db.attempts, ras...)
}

// Feedback returns a snapshot of accepted feedback. Test helper.
func (r *FeedbackRepo) Feedback() []feedback.Feedback {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]feedback.Feedback, len(r.db.feedback))
	copy(out, r.db.feedback)
	return out
}

// Attempts returns a snapshot of rejected attempts. Test helper.
func (r *FeedbackRepo) Attempts() []feedback.RejectedAttempt {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]feedback.RejectedAttempt, len(r.db.attempts))
	copy(out, r.db.attempts)
	return out
}
