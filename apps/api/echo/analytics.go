package echoapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core/analytics"
	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/staff"
)

type analyticsApi struct {
	svc   *analytics.Service
	trail *audit.Trail
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *analytics.Service, trail *audit.Trail) {
	api := analyticsApi{svc: svc, trail: trail}

	// lecturers see their own numbers only
	g.GET("/dashboard", api.dashboard, jwt, roleMiddleware(staff.RoleLecturer, staff.RoleAdmin))
	g.GET("/semesters", api.semesters, jwt, roleMiddleware(staff.RoleLecturer, staff.RoleAdmin))

	ag := g.Group("/analytics", jwt, roleMiddleware(staff.RoleAdmin))
	ag.GET("/overview", api.overview)
	ag.GET("/leaderboard", api.leaderboard)
	ag.GET("/summary/export", api.exportSummaryCSV)
}

func (api *analyticsApi) dashboard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var q analytics.Query
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to Query")
	}

	d, err := api.svc.LecturerDashboard(ctx.Request().Context(), claims.accountID(), q)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *analyticsApi) semesters(ctx echo.Context) error {
	wins, err := api.svc.Semesters(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, wins)
}

func (api *analyticsApi) overview(ctx echo.Context) error {
	var q analytics.Query
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to Query")
	}

	o, err := api.svc.Overview(ctx.Request().Context(), q)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *analyticsApi) leaderboard(ctx echo.Context) error {
	var q analytics.Query
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to Query")
	}

	board, err := api.svc.Leaderboard(ctx.Request().Context(), q)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, board)
}

func (api *analyticsApi) exportSummaryCSV(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var q analytics.Query
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to Query")
	}

	rctx := ctx.Request().Context()
	rows, err := api.svc.SemesterSummary(rctx, q)
	if err != nil {
		return err
	}
	if err := api.trail.Record(rctx, claims.accountID(), audit.ActionExportSemesterSummary, "semester_summary", q.Semester,
		map[string]interface{}{"semester": q.Semester, "rows": len(rows)}); err != nil {
		return err
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="semester_summary.csv"`)
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write([]string{"lecturer_email", "course_code", "feedback_count", "avg_rating", "flagged_count"}); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, row := range rows {
		var avg string
		if row.AvgRating != nil {
			avg = fmt.Sprintf("%.2f", *row.AvgRating)
		}
		record := []string{
			row.LecturerEmail, row.CourseCode,
			strconv.Itoa(row.FeedbackCount), avg, strconv.Itoa(row.FlaggedCount),
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "writing csv record")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing csv")
}
