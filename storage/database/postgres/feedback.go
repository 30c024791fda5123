package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core/feedback"
)

type FeedbackRepo struct {
	db *sqlx.DB
}

func NewFeedbackRepo(db *sqlx.DB) *FeedbackRepo { return &FeedbackRepo{db: db} }

var _ feedback.Repository = (*FeedbackRepo)(nil)

// CreateCommitted inserts the feedback, burns the token and claims the
// session lock in one transaction. The unique constraint on
// session_submission is the last line of defense against racing duplicate
// submissions.
func (repo *FeedbackRepo) CreateCommitted(ctx context.Context, fb feedback.Feedback, reservationID, lockKey string, usedAt time.Time) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if lockKey != "" {
		const lockQ = `
		INSERT INTO session_submission (anon_student_key, course_code, session_key, created_at)
		VALUES ($1, $2, $3, $4)`

		if _, err := tx.ExecContext(ctx, lockQ, lockKey, fb.CourseCode, fb.SessionKey, usedAt); err != nil {
			if isUniqueViolation(err, "") {
				return feedback.ErrDuplicateSubmission
			}
			return errors.Wrap(err, "claiming session lock")
		}
	}

	if err := commitReservation(ctx, tx, reservationID, usedAt); err != nil {
		return err
	}

	const fbQ = `
	INSERT INTO feedback
		(id, token_id, lecturer_id, course_code, session_key, rating, text, cleaned_text, is_flagged, semester, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.ExecContext(ctx, fbQ,
		fb.ID, fb.TokenID, fb.LecturerID, fb.CourseCode, fb.SessionKey,
		fb.Rating, fb.Text, fb.CleanedText, fb.IsFlagged, fb.Semester, fb.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "inserting feedback")
	}

	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo *FeedbackRepo) CreateRejectedAttempt(ctx context.Context, ra feedback.RejectedAttempt) error {
	const q = `
	INSERT INTO rejected_attempt
		(id, token_id, lecturer_id, course_code, session_key, text, reason, is_reviewed, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`

	_, err := repo.db.ExecContext(ctx, q,
		ra.ID, ra.TokenID, ra.LecturerID, ra.CourseCode, ra.SessionKey, ra.Text, ra.Reason, ra.CreatedAt)
	return errors.Wrap(err, "inserting rejected attempt")
}

func (repo *FeedbackRepo) HasSessionSubmission(ctx context.Context, lockKey, courseCode, sessionKey string) (bool, error) {
	const q = `
	SELECT EXISTS (
		SELECT 1 FROM session_submission
		WHERE anon_student_key = $1 AND course_code = $2 AND session_key = $3
	)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, q, lockKey, courseCode, sessionKey); err != nil {
		return false, errors.Wrap(err, "checking session submission")
	}
	return exists, nil
}
