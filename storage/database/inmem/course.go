package inmem

import (
	"context"
	"time"

	"github.com/tmwangi/sauti/core/course"
)

type CourseRepo struct {
	db *DB
}

func NewCourseRepo(db *DB) *CourseRepo { return &CourseRepo{db: db} }

var _ course.Repository = (*CourseRepo)(nil)

func (r *CourseRepo) CreateAssignment(ctx context.Context, a course.Assignment) (course.Assignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.assignments {
		if existing.LecturerID == a.LecturerID && existing.CourseCode == a.CourseCode {
			return course.Assignment{}, course.ErrExists
		}
	}
	a.ID = r.db.nextAssignmentID
	r.db.nextAssignmentID++
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.db.assignments = append(r.db.assignments, a)
	return a, nil
}

func (r *CourseRepo) DeleteAssignment(ctx context.Context, id int) (course.Assignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i, a := range r.db.assignments {
		if a.ID == id {
			r.db.assignments = append(r.db.assignments[:i], r.db.assignments[i+1:]...)
			return a, nil
		}
	}
	return course.Assignment{}, course.ErrNotFound
}

func (r *CourseRepo) QueryAllAssignments(ctx context.Context) ([]course.Assignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]course.Assignment, len(r.db.assignments))
	copy(out, r.db.assignments)
	return out, nil
}

func (r *CourseRepo) AssignmentExists(ctx context.Context, lecturerID int, courseCode string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, a := range r.db.assignments {
		if a.LecturerID == lecturerID && a.CourseCode == courseCode {
			return true, nil
		}
	}
	return false, nil
}

func (r *CourseRepo) CoursesForLecturer(ctx context.Context, lecturerID int) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var codes []string
	for _, a := range r.db.assignments {
		if a.LecturerID == lecturerID {
			codes = append(codes, a.CourseCode)
		}
	}
	return codes, nil
}
