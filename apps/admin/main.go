package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/semester"
	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/core/token"
	"github.com/tmwangi/sauti/storage/database"
	"github.com/tmwangi/sauti/storage/database/postgres"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	sqlDB, err := database.Open(core.Conf)
	errAndDie(err)
	defer sqlDB.Close()
	errAndDie(sqlDB.Ping())
	db := sqlx.NewDb(sqlDB, "postgres")

	staffSvc := staff.NewService(postgres.NewStaffRepo(db))
	trail := audit.NewTrail(postgres.NewAuditRepo(db))
	courseSvc := course.NewService(postgres.NewCourseRepo(db), staffSvc, trail)

	// start CLI
	cli := commandLine{
		db:         sqlDB,
		staffSvc:   staffSvc,
		courseSvc:  courseSvc,
		tokenStore: token.NewStore(postgres.NewTokenRepo(db), courseSvc, semester.NewAcademicCalendar(), trail, core.Conf.TokenReservationTTL),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
