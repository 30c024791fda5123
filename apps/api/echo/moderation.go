package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core/moderation"
	"github.com/tmwangi/sauti/core/staff"
)

type moderationApi struct {
	svc *moderation.Service
}

func registerModerationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *moderation.Service) {
	api := moderationApi{svc: svc}

	mg := g.Group("/moderation", jwt, roleMiddleware(staff.RoleAdmin))
	mg.GET("", api.list)
	mg.GET("/count", api.count)
	mg.POST("/feedback/:id/dismiss", api.dismissFlag)
	mg.POST("/attempts/:id/dismiss", api.dismissAttempt)
}

func (api *moderationApi) list(ctx echo.Context) error {
	items, err := api.svc.ListPending(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *moderationApi) count(ctx echo.Context) error {
	n, err := api.svc.PendingCount(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"pending": n})
}

func (api *moderationApi) dismissFlag(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data moderation.Dismissal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Dismissal")
	}

	if err := api.svc.DismissFlag(ctx.Request().Context(), claims.accountID(), ctx.Param("id"), data); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *moderationApi) dismissAttempt(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data moderation.Dismissal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Dismissal")
	}

	if err := api.svc.DismissAttempt(ctx.Request().Context(), claims.accountID(), ctx.Param("id"), data); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
