package course

import (
	"context"
	"errors"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/staff"
)

var (
	ErrNotFound        = errors.New("course assignment not found")
	ErrExists          = errors.New("course is already assigned to this lecturer")
	ErrInvalidLecturer = errors.New("invalid lecturer selected")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id int) (Assignment, error)
		QueryAllAssignments(ctx context.Context) ([]Assignment, error)
		AssignmentExists(ctx context.Context, lecturerID int, courseCode string) (bool, error)
		CoursesForLecturer(ctx context.Context, lecturerID int) ([]string, error)
	}

	Service struct {
		repo     Repository
		staffSvc *staff.Service
		trail    *audit.Trail
	}
)

func NewService(repo Repository, staffSvc *staff.Service, trail *audit.Trail) *Service {
	return &Service{repo: repo, staffSvc: staffSvc, trail: trail}
}

// Assign creates a lecturer/course assignment on behalf of adminID.
func (svc *Service) Assign(ctx context.Context, adminID int, na NewAssignment) (Assignment, error) {
	if err := na.Validate(); err != nil {
		return Assignment{}, err
	}

	lect, err := svc.staffSvc.GetByID(ctx, na.LecturerID)
	if err != nil || !lect.IsLecturer() {
		return Assignment{}, core.NewValidationError(ErrInvalidLecturer,
			core.FieldError{Field: "lecturer_id", Error: ErrInvalidLecturer.Error()})
	}

	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		LecturerID:    na.LecturerID,
		LecturerEmail: lect.Email,
		CourseCode:    na.CourseCode,
	})
	if err != nil {
		return Assignment{}, err
	}

	_ = svc.trail.Record(ctx, adminID, audit.ActionCourseAssigned, "course_assignment", a.CourseCode,
		map[string]interface{}{"lecturer_id": a.LecturerID, "course_code": a.CourseCode})
	return a, nil
}

// Unassign removes an assignment. Existing tokens and feedback keep their
// course stamp; only future token issuance is affected.
func (svc *Service) Unassign(ctx context.Context, adminID, id int) error {
	a, err := svc.repo.DeleteAssignment(ctx, id)
	if err != nil {
		return err
	}
	_ = svc.trail.Record(ctx, adminID, audit.ActionCourseUnassigned, "course_assignment", a.CourseCode,
		map[string]interface{}{"lecturer_id": a.LecturerID, "course_code": a.CourseCode})
	return nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]Assignment, error) {
	return svc.repo.QueryAllAssignments(ctx)
}

// Exists reports whether lecturerID is assigned courseCode.
func (svc *Service) Exists(ctx context.Context, lecturerID int, courseCode string) (bool, error) {
	return svc.repo.AssignmentExists(ctx, lecturerID, NormalizeCode(courseCode))
}

// CoursesFor returns the course codes assigned to a lecturer, sorted.
func (svc *Service) CoursesFor(ctx context.Context, lecturerID int) ([]string, error) {
	return svc.repo.CoursesForLecturer(ctx, lecturerID)
}
