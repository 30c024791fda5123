package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"syscall"

	"golang.org/x/term"

	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/core/token"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	staffSvc   *staff.Service
	courseSvc  *course.Service
	tokenStore *token.Store
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  addstaff -email EMAIL [-role LECTURER|ADMIN] - create a staff account (password prompted)")
	fmt.Println("  assigncourse -lecturer ID -course CODE - assign a course to a lecturer")
	fmt.Println("  resetpassword -email EMAIL - reset a staff account's password")
	fmt.Println("  migrate COMMAND [args] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  seed - load a demo dataset (dev only)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addStaffCmd := flag.NewFlagSet("addstaff", flag.ExitOnError)
	addStaffEmail := addStaffCmd.String("email", "", "The account's email. The password will be prompted next.")
	addStaffRole := addStaffCmd.String("role", staff.RoleLecturer, "LECTURER or ADMIN.")

	assignCmd := flag.NewFlagSet("assigncourse", flag.ExitOnError)
	assignLecturer := assignCmd.String("lecturer", "", "The lecturer's account ID.")
	assignCourse := assignCmd.String("course", "", "The course code.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	switch args[1] {
	case "addstaff":
		if err := addStaffCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStaffEmail == "" {
			addStaffCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addStaffCmd.Usage()
			return errHelp
		}
		return cli.addStaff(*addStaffEmail, pwd, *addStaffRole)
	case "assigncourse":
		if err := assignCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *assignLecturer == "" || *assignCourse == "" {
			assignCmd.Usage()
			return errHelp
		}
		lecturerID, err := strconv.Atoi(*assignLecturer)
		if err != nil {
			return fmt.Errorf("lecturer must be an account ID (got %q)", *assignLecturer)
		}
		return cli.assignCourse(lecturerID, *assignCourse)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "seed":
		return cli.seed()
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
