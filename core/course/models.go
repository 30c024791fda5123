package course

import (
	"strings"
	"time"

	"github.com/tmwangi/sauti/core"
)

// Assignment links a lecturer to a course they teach. Token batches can only
// be issued for an existing assignment.
type Assignment struct {
	ID            int       `json:"id"`
	LecturerID    int       `json:"lecturer_id"`
	LecturerEmail string    `json:"lecturer_email"`
	CourseCode    string    `json:"course_code"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// NewAssignment contains information needed to assign a course to a lecturer.
type NewAssignment struct {
	LecturerID int    `json:"lecturer_id" validate:"required"`
	CourseCode string `json:"course_code" validate:"required,min=2,max=50,coursecode"`
}

func (na *NewAssignment) Validate() error {
	na.CourseCode = NormalizeCode(na.CourseCode)
	return core.Validate.Struct(na)
}

// NormalizeCode uppercases and trims a course code so "csc401 " and "CSC401"
// name the same course.
func NormalizeCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}
