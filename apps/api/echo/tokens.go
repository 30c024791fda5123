package echoapi

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/core/token"
)

type tokenApi struct {
	store *token.Store
	trail *audit.Trail
}

func registerTokenAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *token.Store, trail *audit.Trail) {
	api := tokenApi{store: store, trail: trail}

	tg := g.Group("/tokens", jwt, roleMiddleware(staff.RoleAdmin))
	tg.POST("/batch", api.issueBatch)
	tg.GET("", api.filter)
	tg.GET("/export", api.exportCSV)
	tg.GET("/usage", api.usage)
}

// tokenItem is the admin listing row; unlike the raw model it spells out the
// lifecycle state.
type tokenItem struct {
	token.Token
	IsUsed bool `json:"is_used"`
}

func (api *tokenApi) issueBatch(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data token.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}

	batch, err := api.store.IssueBatch(ctx.Request().Context(), claims.accountID(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, batch)
}

func (api *tokenApi) filter(ctx echo.Context) error {
	var qf token.QueryFilter
	if err := ctx.Bind(&qf); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	tokens, err := api.store.Filter(ctx.Request().Context(), qf)
	if err != nil {
		return err
	}
	items := make([]tokenItem, len(tokens))
	for i, t := range tokens {
		items[i] = tokenItem{Token: t, IsUsed: t.Used()}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *tokenApi) exportCSV(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var qf token.QueryFilter
	if err := ctx.Bind(&qf); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	rctx := ctx.Request().Context()
	tokens, err := api.store.Filter(rctx, qf)
	if err != nil {
		return err
	}
	if err := api.trail.Record(rctx, claims.accountID(), audit.ActionExportTokenList, "feedback_token", qf.CourseCode,
		map[string]interface{}{"course_code": qf.CourseCode, "semester": qf.Semester, "count": len(tokens)}); err != nil {
		return err
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="tokens.csv"`)
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write([]string{"token", "course_code", "session_key", "session_label", "lecturer_email", "semester", "is_used", "used_at", "created_at"}); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, t := range tokens {
		var usedAt string
		if t.UsedAt.Valid {
			usedAt = t.UsedAt.Time.Format(time.RFC3339)
		}
		record := []string{
			t.Value, t.CourseCode, t.SessionKey, t.SessionLabel, t.LecturerEmail,
			t.Semester, strconv.FormatBool(t.Used()), usedAt, t.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "writing csv record")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing csv")
}

func (api *tokenApi) usage(ctx echo.Context) error {
	usage, err := api.store.Usage(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usage)
}
