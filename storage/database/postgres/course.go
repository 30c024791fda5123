package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core/course"
)

type CourseRepo struct {
	db *sqlx.DB
}

func NewCourseRepo(db *sqlx.DB) *CourseRepo { return &CourseRepo{db: db} }

var _ course.Repository = (*CourseRepo)(nil)

type assignmentRow struct {
	ID            int       `db:"id"`
	LecturerID    int       `db:"lecturer_id"`
	LecturerEmail string    `db:"lecturer_email"`
	CourseCode    string    `db:"course_code"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r assignmentRow) assignment() course.Assignment {
	return course.Assignment{
		ID:            r.ID,
		LecturerID:    r.LecturerID,
		LecturerEmail: r.LecturerEmail,
		CourseCode:    r.CourseCode,
		CreatedAt:     r.CreatedAt,
	}
}

func (repo *CourseRepo) CreateAssignment(ctx context.Context, a course.Assignment) (course.Assignment, error) {
	const q = `
	INSERT INTO course_assignment (lecturer_id, course_code, created_at)
	VALUES ($1, $2, $3)
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q, a.LecturerID, a.CourseCode, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err, "") {
			return course.Assignment{}, course.ErrExists
		}
		return course.Assignment{}, errors.Wrap(err, "inserting course assignment")
	}
	return a, nil
}

func (repo *CourseRepo) DeleteAssignment(ctx context.Context, id int) (course.Assignment, error) {
	const q = `
	DELETE FROM course_assignment ca
	USING staff_account sa
	WHERE ca.id = $1 AND sa.id = ca.lecturer_id
	RETURNING ca.id, ca.lecturer_id, sa.email AS lecturer_email, ca.course_code, ca.created_at`

	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return course.Assignment{}, course.ErrNotFound
		}
		return course.Assignment{}, errors.Wrap(err, "deleting course assignment")
	}
	return row.assignment(), nil
}

func (repo *CourseRepo) QueryAllAssignments(ctx context.Context) ([]course.Assignment, error) {
	const q = `
	SELECT ca.id, ca.lecturer_id, sa.email AS lecturer_email, ca.course_code, ca.created_at
	FROM course_assignment ca
	JOIN staff_account sa ON sa.id = ca.lecturer_id
	ORDER BY sa.email, ca.course_code`

	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying course assignments")
	}
	assignments := make([]course.Assignment, len(rows))
	for i, row := range rows {
		assignments[i] = row.assignment()
	}
	return assignments, nil
}

func (repo *CourseRepo) AssignmentExists(ctx context.Context, lecturerID int, courseCode string) (bool, error) {
	const q = `
	SELECT EXISTS (
		SELECT 1 FROM course_assignment WHERE lecturer_id = $1 AND course_code = $2
	)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, q, lecturerID, courseCode); err != nil {
		return false, errors.Wrap(err, "checking course assignment")
	}
	return exists, nil
}

func (repo *CourseRepo) CoursesForLecturer(ctx context.Context, lecturerID int) ([]string, error) {
	const q = `SELECT course_code FROM course_assignment WHERE lecturer_id = $1 ORDER BY course_code`

	var codes []string
	if err := repo.db.SelectContext(ctx, &codes, q, lecturerID); err != nil {
		return nil, errors.Wrap(err, "querying lecturer courses")
	}
	return codes, nil
}
