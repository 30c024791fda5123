package echoapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/staff"
)

func TestStaffLogin(t *testing.T) {
	app := newTestApp(t)

	t.Run("ok", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/staff/login", "", LoginRequest{
			Email: "admin@test.cd", Password: "secretpwd",
		})
		mustStatus(t, rec, http.StatusOK)

		var res LoginResponse
		decodeBody(t, rec, &res)
		assert.NotEmpty(t, res.Token)

		// the token actually opens admin doors
		rec = app.request(t, http.MethodGet, "/v1/staff/lecturers", res.Token, nil)
		mustStatus(t, rec, http.StatusOK)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/staff/login", "", LoginRequest{
			Email: "admin@test.cd", Password: "nope",
		})
		mustStatus(t, rec, http.StatusBadRequest)
		assert.Contains(t, rec.Body.String(), "authentication failed")
	})

	t.Run("unknown account", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/staff/login", "", LoginRequest{
			Email: "ghost@test.cd", Password: "secretpwd",
		})
		mustStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/staff/login", "", LoginRequest{Email: "admin@test.cd"})
		mustStatus(t, rec, http.StatusBadRequest)
	})
}

func TestStaffCreate(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.authToken(t, app.admin)
	lecturerToken := app.authToken(t, app.lecturer)

	t.Run("admin creates lecturer", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/staff", adminToken, staff.NewAccount{
			Email: "new.lecturer@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
		})
		mustStatus(t, rec, http.StatusCreated)

		var acc staff.Account
		decodeBody(t, rec, &acc)
		assert.Equal(t, "new.lecturer@test.cd", acc.Email)
		assert.Equal(t, staff.RoleLecturer, acc.Role)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/staff", adminToken, staff.NewAccount{
			Email: app.lecturer.Email, Password: "secretpwd", Role: staff.RoleLecturer,
		})
		mustStatus(t, rec, http.StatusBadRequest)
		assert.Contains(t, rec.Body.String(), "email")
	})

	t.Run("lecturer forbidden", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/staff", lecturerToken, staff.NewAccount{
			Email: "sneaky@test.cd", Password: "secretpwd", Role: staff.RoleAdmin,
		})
		mustStatus(t, rec, http.StatusForbidden)
	})

	t.Run("anonymous unauthorized", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/staff", "", staff.NewAccount{
			Email: "sneaky@test.cd", Password: "secretpwd", Role: staff.RoleAdmin,
		})
		mustStatus(t, rec, http.StatusUnauthorized)
	})
}

func TestCourseAssignments(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.authToken(t, app.admin)
	lecturerToken := app.authToken(t, app.lecturer)

	t.Run("assign and list", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/courses", adminToken, course.NewAssignment{
			LecturerID: app.lecturer.ID, CourseCode: "mat 202",
		})
		mustStatus(t, rec, http.StatusCreated)

		var a course.Assignment
		decodeBody(t, rec, &a)
		assert.Equal(t, "MAT 202", a.CourseCode) // normalized
		assert.Equal(t, app.lecturer.Email, a.LecturerEmail)

		rec = app.request(t, http.MethodGet, "/v1/courses", adminToken, nil)
		mustStatus(t, rec, http.StatusOK)

		var all []course.Assignment
		decodeBody(t, rec, &all)
		require.Len(t, all, 2) // fixture seeds CSC 101
	})

	t.Run("duplicate assignment", func(t *testing.T) {
		rec := app.request(t, http.MethodPost, "/v1/courses", adminToken, course.NewAssignment{
			LecturerID: app.lecturer.ID, CourseCode: "CSC 101",
		})
		mustStatus(t, rec, http.StatusConflict)
	})

	t.Run("unassign", func(t *testing.T) {
		rec := app.request(t, http.MethodGet, "/v1/courses", adminToken, nil)
		mustStatus(t, rec, http.StatusOK)
		var all []course.Assignment
		decodeBody(t, rec, &all)

		var id int
		for _, a := range all {
			if a.CourseCode == "MAT 202" {
				id = a.ID
			}
		}
		require.NotZero(t, id)

		rec = app.request(t, http.MethodDelete, fmt.Sprintf("/v1/courses/%d", id), adminToken, nil)
		mustStatus(t, rec, http.StatusNoContent)

		rec = app.request(t, http.MethodDelete, fmt.Sprintf("/v1/courses/%d", id), adminToken, nil)
		mustStatus(t, rec, http.StatusNotFound)
	})

	t.Run("lecturer forbidden", func(t *testing.T) {
		rec := app.request(t, http.MethodGet, "/v1/courses", lecturerToken, nil)
		mustStatus(t, rec, http.StatusForbidden)
	})
}
