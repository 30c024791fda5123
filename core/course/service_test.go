package course_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/storage/database/inmem"
)

type courseFixture struct {
	svc      *course.Service
	auditLog *inmem.AuditRepo
	admin    staff.Account
	lecturer staff.Account
}

func newCourseFixture(t *testing.T) *courseFixture {
	t.Helper()
	ctx := context.Background()

	db := inmem.NewDB()
	auditLog := inmem.NewAuditRepo(db)
	staffSvc := staff.NewService(inmem.NewStaffRepo(db))
	svc := course.NewService(inmem.NewCourseRepo(db), staffSvc, audit.NewTrail(auditLog))

	admin, err := staffSvc.Create(ctx, staff.NewAccount{
		Email: "boss@test.cd", Password: "secretpwd", Role: staff.RoleAdmin,
	})
	require.NoError(t, err)
	lecturer, err := staffSvc.Create(ctx, staff.NewAccount{
		Email: "awesome.lecturer@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
	})
	require.NoError(t, err)

	return &courseFixture{svc: svc, auditLog: auditLog, admin: admin, lecturer: lecturer}
}

func TestServiceAssign(t *testing.T) {
	ctx := context.Background()
	fix := newCourseFixture(t)

	t.Run("ok", func(t *testing.T) {
		a, err := fix.svc.Assign(ctx, fix.admin.ID, course.NewAssignment{
			LecturerID: fix.lecturer.ID, CourseCode: " csc 101 ",
		})
		require.NoError(t, err)
		assert.Equal(t, "CSC 101", a.CourseCode) // normalized
		assert.Equal(t, fix.lecturer.Email, a.LecturerEmail)
		assert.NotZero(t, a.ID)

		entries := fix.auditLog.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.ActionCourseAssigned, entries[0].Action)
		assert.Equal(t, fix.admin.ID, entries[0].AdminID)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := fix.svc.Assign(ctx, fix.admin.ID, course.NewAssignment{
			LecturerID: fix.lecturer.ID, CourseCode: "CSC 101",
		})
		assert.ErrorIs(t, err, course.ErrExists)
	})

	t.Run("admin is not a lecturer", func(t *testing.T) {
		_, err := fix.svc.Assign(ctx, fix.admin.ID, course.NewAssignment{
			LecturerID: fix.admin.ID, CourseCode: "CSC 102",
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("unknown lecturer", func(t *testing.T) {
		_, err := fix.svc.Assign(ctx, fix.admin.ID, course.NewAssignment{
			LecturerID: 999, CourseCode: "CSC 102",
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("bad course code", func(t *testing.T) {
		_, err := fix.svc.Assign(ctx, fix.admin.ID, course.NewAssignment{
			LecturerID: fix.lecturer.ID, CourseCode: "C",
		})
		assert.Error(t, err)
	})
}

func TestServiceUnassign(t *testing.T) {
	ctx := context.Background()
	fix := newCourseFixture(t)

	a, err := fix.svc.Assign(ctx, fix.admin.ID, course.NewAssignment{
		LecturerID: fix.lecturer.ID, CourseCode: "CSC 101",
	})
	require.NoError(t, err)

	require.NoError(t, fix.svc.Unassign(ctx, fix.admin.ID, a.ID))

	exists, err := fix.svc.Exists(ctx, fix.lecturer.ID, "CSC 101")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, fix.svc.Unassign(ctx, fix.admin.ID, a.ID), course.ErrNotFound)
}

func TestServiceCoursesFor(t *testing.T) {
	ctx := context.Background()
	fix := newCourseFixture(t)

	for _, code := range []string{"CSC 101", "CSC 205"} {
		_, err := fix.svc.Assign(ctx, fix.admin.ID, course.NewAssignment{
			LecturerID: fix.lecturer.ID, CourseCode: code,
		})
		require.NoError(t, err)
	}

	codes, err := fix.svc.CoursesFor(ctx, fix.lecturer.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CSC 101", "CSC 205"}, codes)

	codes, err = fix.svc.CoursesFor(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, codes)
}
