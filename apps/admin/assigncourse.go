package main

import (
	"context"

	"github.com/tmwangi/sauti/core/course"
)

func (cli *commandLine) assignCourse(lecturerID int, code string) error {
	_, err := cli.courseSvc.Assign(context.Background(), 0, course.NewAssignment{
		LecturerID: lecturerID,
		CourseCode: code,
	})
	return err
}
