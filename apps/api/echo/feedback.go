package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core/feedback"
)

// clientRefHeader carries the opaque per-device reference behind the
// duplicate guard. Optional; anonymous clients simply skip the guard.
const clientRefHeader = "X-Client-Ref"

// SubmitResponse acknowledges an accepted submission. The stored comment is
// never echoed back; the token was anonymous and stays that way.
type SubmitResponse struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	IsFlagged bool   `json:"is_flagged"`
}

type feedbackApi struct {
	pipeline *feedback.Pipeline
}

// registerFeedbackAPI mounts the student-facing endpoints. They are
// deliberately unauthenticated; the token is the credential.
func registerFeedbackAPI(g *echo.Group, pipeline *feedback.Pipeline) {
	api := feedbackApi{pipeline: pipeline}

	fg := g.Group("/feedback")
	fg.POST("", api.submit)
	fg.GET("/token-status/:value", api.tokenStatus)
}

func (api *feedbackApi) submit(ctx echo.Context) error {
	var data feedback.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if data.StudentRef == "" {
		data.StudentRef = ctx.Request().Header.Get(clientRefHeader)
	}

	fb, err := api.pipeline.Submit(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, SubmitResponse{
		ID:        fb.ID,
		Message:   "Feedback submitted",
		IsFlagged: fb.IsFlagged,
	})
}

func (api *feedbackApi) tokenStatus(ctx echo.Context) error {
	studentRef := ctx.QueryParam("student_ref")
	if studentRef == "" {
		studentRef = ctx.Request().Header.Get(clientRefHeader)
	}

	st, err := api.pipeline.TokenStatus(ctx.Request().Context(), ctx.Param("value"), studentRef)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}
