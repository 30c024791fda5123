package main

import (
	"context"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	return cli.staffSvc.ResetPassword(context.Background(), email, pwd)
}
