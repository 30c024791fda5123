package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/staff"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (r *LoginRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true)
	return core.Validate.Struct(r)
}

type staffApi struct {
	svc       *staff.Service
	courseSvc *course.Service
}

func registerStaffAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *staff.Service, courseSvc *course.Service) {
	api := staffApi{svc: svc, courseSvc: courseSvc}

	sg := g.Group("/staff")
	sg.POST("/login", api.login)

	ag := sg.Group("", jwt, roleMiddleware(staff.RoleAdmin))
	ag.POST("", api.create)
	ag.GET("/lecturers", api.lecturers)

	cg := g.Group("/courses", jwt, roleMiddleware(staff.RoleAdmin))
	cg.POST("", api.assign)
	cg.GET("", api.queryAssignments)
	cg.DELETE("/:id", api.unassign)
}

func (api *staffApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *staffApi) create(ctx echo.Context) error {
	var data staff.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}

	acc, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *staffApi) lecturers(ctx echo.Context) error {
	lecturers, err := api.svc.Lecturers(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lecturers)
}

func (api *staffApi) assign(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data course.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}

	a, err := api.courseSvc.Assign(ctx.Request().Context(), claims.accountID(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *staffApi) queryAssignments(ctx echo.Context) error {
	assignments, err := api.courseSvc.QueryAll(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *staffApi) unassign(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}

	if err := api.courseSvc.Unassign(ctx.Request().Context(), claims.accountID(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
