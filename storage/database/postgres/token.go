package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmwangi/sauti/core/token"
)

type TokenRepo struct {
	db *sqlx.DB
}

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{db: db} }

var _ token.Repository = (*TokenRepo)(nil)

type tokenRow struct {
	ID            string      `db:"id"`
	Value         string      `db:"value"`
	LecturerID    int         `db:"lecturer_id"`
	LecturerEmail string      `db:"lecturer_email"`
	CourseCode    string      `db:"course_code"`
	SessionKey    string      `db:"session_key"`
	SessionLabel  string      `db:"session_label"`
	Semester      string      `db:"semester"`
	Status        string      `db:"status"`
	ReservationID null.String `db:"reservation_id"`
	ReservedAt    null.Time   `db:"reserved_at"`
	CreatedAt     time.Time   `db:"created_at"`
	UsedAt        null.Time   `db:"used_at"`
}

func (r tokenRow) token() token.Token {
	return token.Token{
		ID:            r.ID,
		Value:         r.Value,
		LecturerID:    r.LecturerID,
		LecturerEmail: r.LecturerEmail,
		CourseCode:    r.CourseCode,
		SessionKey:    r.SessionKey,
		SessionLabel:  r.SessionLabel,
		Semester:      r.Semester,
		Status:        r.Status,
		ReservationID: r.ReservationID,
		ReservedAt:    r.ReservedAt,
		CreatedAt:     r.CreatedAt,
		UsedAt:        r.UsedAt,
	}
}

const tokenColumns = `
	ft.id, ft.value, ft.lecturer_id, sa.email AS lecturer_email, ft.course_code,
	ft.session_key, ft.session_label, ft.semester, ft.status, ft.reservation_id,
	ft.reserved_at, ft.created_at, ft.used_at`

func (repo *TokenRepo) CreateTokens(ctx context.Context, tokens []token.Token) error {
	const q = `
	INSERT INTO feedback_token
		(id, value, lecturer_id, course_code, session_key, session_label, semester, status, created_at)
	VALUES (:id, :value, :lecturer_id, :course_code, :session_key, :session_label, :semester, :status, :created_at)`

	rows := make([]map[string]interface{}, len(tokens))
	for i, t := range tokens {
		rows[i] = map[string]interface{}{
			"id":            t.ID,
			"value":         t.Value,
			"lecturer_id":   t.LecturerID,
			"course_code":   t.CourseCode,
			"session_key":   t.SessionKey,
			"session_label": t.SessionLabel,
			"semester":      t.Semester,
			"status":        t.Status,
			"created_at":    t.CreatedAt,
		}
	}
	if _, err := repo.db.NamedExecContext(ctx, q, rows); err != nil {
		return errors.Wrap(err, "inserting tokens")
	}
	return nil
}

func (repo *TokenRepo) GetTokenByValue(ctx context.Context, value string) (token.Token, error) {
	q := `
	SELECT` + tokenColumns + `
	FROM feedback_token ft
	JOIN staff_account sa ON sa.id = ft.lecturer_id
	WHERE ft.value = $1`

	var row tokenRow
	if err := repo.db.GetContext(ctx, &row, q, value); err != nil {
		if isNoRows(err) {
			return token.Token{}, token.ErrNotFound
		}
		return token.Token{}, errors.Wrap(err, "getting token")
	}
	return row.token(), nil
}

// ReserveToken runs the compare-and-swap as one conditional UPDATE, so under
// concurrency the row lock decides the single winner. Losers get a follow-up
// read to diagnose why.
func (repo *TokenRepo) ReserveToken(ctx context.Context, value, reservationID string, now, staleBefore time.Time) (token.Token, error) {
	q := `
	UPDATE feedback_token ft
	SET status = 'reserved', reservation_id = $2, reserved_at = $3
	FROM staff_account sa
	WHERE ft.value = $1
	  AND sa.id = ft.lecturer_id
	  AND (ft.status = 'unused' OR (ft.status = 'reserved' AND ft.reserved_at < $4))
	RETURNING` + tokenColumns

	var row tokenRow
	err := repo.db.GetContext(ctx, &row, q, value, reservationID, now, staleBefore)
	if err == nil {
		return row.token(), nil
	}
	if !isNoRows(err) {
		return token.Token{}, errors.Wrap(err, "reserving token")
	}

	// the CAS matched nothing; find out why
	t, gerr := repo.GetTokenByValue(ctx, value)
	if gerr != nil {
		return token.Token{}, gerr
	}
	if t.Used() {
		return token.Token{}, token.ErrAlreadyUsed
	}
	return token.Token{}, token.ErrReserved
}

func (repo *TokenRepo) ReleaseReservation(ctx context.Context, reservationID string) error {
	const q = `
	UPDATE feedback_token
	SET status = 'unused', reservation_id = NULL, reserved_at = NULL
	WHERE reservation_id = $1 AND status = 'reserved'`

	if _, err := repo.db.ExecContext(ctx, q, reservationID); err != nil {
		return errors.Wrap(err, "releasing reservation")
	}
	return nil
}

func (repo *TokenRepo) CommitReservation(ctx context.Context, reservationID string, usedAt time.Time) error {
	return commitReservation(ctx, repo.db, reservationID, usedAt)
}

// commitReservation is shared with the feedback repo's transaction.
func commitReservation(ctx context.Context, db sqlx.ExtContext, reservationID string, usedAt time.Time) error {
	const q = `
	UPDATE feedback_token
	SET status = 'used', used_at = COALESCE(used_at, $2)
	WHERE reservation_id = $1 AND status IN ('reserved', 'used')`

	res, err := db.ExecContext(ctx, q, reservationID, usedAt)
	if err != nil {
		return errors.Wrap(err, "committing reservation")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return token.ErrNotFound
	}
	return nil
}

func (repo *TokenRepo) FilterTokens(ctx context.Context, qf token.QueryFilter) ([]token.Token, error) {
	q := `
	SELECT` + tokenColumns + `
	FROM feedback_token ft
	JOIN staff_account sa ON sa.id = ft.lecturer_id
	WHERE ($1 = '' OR ft.course_code = $1)
	  AND ($2 = 0 OR ft.lecturer_id = $2)
	  AND ($3::timestamptz IS NULL OR ft.created_at >= $3)
	  AND ($4::timestamptz IS NULL OR ft.created_at < $4)
	ORDER BY ft.created_at DESC`

	var rows []tokenRow
	err := repo.db.SelectContext(ctx, &rows, q,
		qf.CourseCode, qf.LecturerID, nullableTime(qf.Since), nullableTime(qf.Until))
	if err != nil {
		return nil, errors.Wrap(err, "filtering tokens")
	}
	tokens := make([]token.Token, len(rows))
	for i, row := range rows {
		tokens[i] = row.token()
	}
	return tokens, nil
}

func (repo *TokenRepo) CourseUsage(ctx context.Context) ([]token.CourseUsage, error) {
	const q = `
	SELECT course_code,
	       COUNT(*) FILTER (WHERE status = 'used') AS used_tokens,
	       COUNT(*) AS total_tokens
	FROM feedback_token
	GROUP BY course_code
	ORDER BY course_code`

	var rows []struct {
		CourseCode  string `db:"course_code"`
		UsedTokens  int    `db:"used_tokens"`
		TotalTokens int    `db:"total_tokens"`
	}
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying token usage")
	}
	usage := make([]token.CourseUsage, len(rows))
	for i, row := range rows {
		u := token.CourseUsage{
			CourseCode:  row.CourseCode,
			UsedTokens:  row.UsedTokens,
			TotalTokens: row.TotalTokens,
		}
		if u.TotalTokens > 0 {
			u.UsagePct = float64(u.UsedTokens) / float64(u.TotalTokens) * 100
		}
		usage[i] = u
	}
	return usage, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
