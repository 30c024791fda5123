package main

import (
	"context"
	"fmt"

	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/core/token"
)

// seed loads a small demo dataset: an admin, two lecturers with course
// assignments, and a token batch per course. Intended for dev environments;
// it fails on a database that already holds these accounts.
func (cli *commandLine) seed() error {
	ctx := context.Background()

	admin, err := cli.staffSvc.Create(ctx, staff.NewAccount{
		Email: "admin@sauti.cd", Password: "secretpwd", Role: staff.RoleAdmin,
	})
	if err != nil {
		return err
	}

	lecturers := []struct {
		email   string
		courses []string
	}{
		{"jm.mwangi@sauti.cd", []string{"CSC 101", "CSC 205"}},
		{"a.kabeya@sauti.cd", []string{"MAT 202"}},
	}
	for _, l := range lecturers {
		acc, err := cli.staffSvc.Create(ctx, staff.NewAccount{
			Email: l.email, Password: "secretpwd", Role: staff.RoleLecturer,
		})
		if err != nil {
			return err
		}
		for _, code := range l.courses {
			if _, err := cli.courseSvc.Assign(ctx, admin.ID, course.NewAssignment{
				LecturerID: acc.ID, CourseCode: code,
			}); err != nil {
				return err
			}
			batch, err := cli.tokenStore.IssueBatch(ctx, admin.ID, token.NewBatch{
				LecturerID: acc.ID, CourseCode: code, Quantity: 20,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s %s: %d tokens issued\n", l.email, code, len(batch.Tokens))
		}
	}
	return nil
}
