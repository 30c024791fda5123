package main

import (
	"context"

	"github.com/tmwangi/sauti/core/staff"
)

func (cli *commandLine) addStaff(email, pwd, role string) error {
	_, err := cli.staffSvc.Create(context.Background(), staff.NewAccount{
		Email:    email,
		Password: pwd,
		Role:     role,
	})
	return err
}
