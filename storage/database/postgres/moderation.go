package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core/moderation"
)

type ModerationRepo struct {
	db *sqlx.DB
}

func NewModerationRepo(db *sqlx.DB) *ModerationRepo { return &ModerationRepo{db: db} }

var _ moderation.Repository = (*ModerationRepo)(nil)

type itemRow struct {
	ID            string    `db:"id"`
	LecturerID    int       `db:"lecturer_id"`
	LecturerEmail string    `db:"lecturer_email"`
	CourseCode    string    `db:"course_code"`
	SessionKey    string    `db:"session_key"`
	Comment       string    `db:"comment"`
	Rating        int       `db:"rating"`
	Reason        string    `db:"reason"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r itemRow) item(kind string) moderation.Item {
	return moderation.Item{
		Kind:          kind,
		ID:            r.ID,
		LecturerID:    r.LecturerID,
		LecturerEmail: r.LecturerEmail,
		CourseCode:    r.CourseCode,
		SessionKey:    r.SessionKey,
		Comment:       r.Comment,
		Rating:        r.Rating,
		Reason:        r.Reason,
		CreatedAt:     r.CreatedAt,
	}
}

func (repo *ModerationRepo) PendingFlaggedFeedback(ctx context.Context) ([]moderation.Item, error) {
	const q = `
	SELECT f.id, f.lecturer_id, sa.email AS lecturer_email, f.course_code, f.session_key,
	       f.text AS comment, f.rating, '' AS reason, f.created_at
	FROM feedback f
	JOIN staff_account sa ON sa.id = f.lecturer_id
	WHERE f.is_flagged
	ORDER BY f.created_at DESC`

	var rows []itemRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying flagged feedback")
	}
	items := make([]moderation.Item, len(rows))
	for i, row := range rows {
		items[i] = row.item(moderation.KindFeedback)
	}
	return items, nil
}

func (repo *ModerationRepo) PendingRejectedAttempts(ctx context.Context) ([]moderation.Item, error) {
	const q = `
	SELECT ra.id, ra.lecturer_id, sa.email AS lecturer_email, ra.course_code, ra.session_key,
	       ra.text AS comment, 0 AS rating, ra.reason, ra.created_at
	FROM rejected_attempt ra
	JOIN staff_account sa ON sa.id = ra.lecturer_id
	WHERE NOT ra.is_reviewed
	ORDER BY ra.created_at DESC`

	var rows []itemRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying rejected attempts")
	}
	items := make([]moderation.Item, len(rows))
	for i, row := range rows {
		items[i] = row.item(moderation.KindRejectedAttempt)
	}
	return items, nil
}

// DismissFlag clears the flag and records the review atomically; the row
// lock on the UPDATE makes the second of two concurrent dismissals match
// nothing and resolve to ErrNotFound.
func (repo *ModerationRepo) DismissFlag(ctx context.Context, feedbackID string, reviewerID int, note string, at time.Time) error {
	const q = `
	WITH cleared AS (
		UPDATE feedback
		SET is_flagged = FALSE
		WHERE id = $1 AND is_flagged
		RETURNING id
	)
	INSERT INTO flag_review (feedback_id, reviewer_id, note, reviewed_at)
	SELECT id, $2, $3, $4 FROM cleared`

	res, err := repo.db.ExecContext(ctx, q, feedbackID, reviewerID, note, at)
	if err != nil {
		return errors.Wrap(err, "dismissing flag")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return moderation.ErrNotFound
	}
	return nil
}

func (repo *ModerationRepo) DismissAttempt(ctx context.Context, attemptID string, reviewerID int, note string, at time.Time) error {
	const q = `
	UPDATE rejected_attempt
	SET is_reviewed = TRUE, reviewed_by = $2, review_note = $3, reviewed_at = $4
	WHERE id = $1 AND NOT is_reviewed`

	res, err := repo.db.ExecContext(ctx, q, attemptID, reviewerID, note, at)
	if err != nil {
		return errors.Wrap(err, "dismissing rejected attempt")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return moderation.ErrNotFound
	}
	return nil
}

func (repo *ModerationRepo) PendingCount(ctx context.Context) (int, error) {
	const q = `
	SELECT (SELECT COUNT(*) FROM feedback WHERE is_flagged)
	     + (SELECT COUNT(*) FROM rejected_attempt WHERE NOT is_reviewed)`

	var n int
	if err := repo.db.GetContext(ctx, &n, q); err != nil {
		return 0, errors.Wrap(err, "counting pending moderation items")
	}
	return n, nil
}
