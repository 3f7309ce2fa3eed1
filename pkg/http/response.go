package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  Errors `json:"errors,omitempty"`
}

// JSON writes data in an Envelope with the given status.
func JSON(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Status: status, Message: http.StatusText(status), Data: data})
}

func OK(c echo.Context, data any) error { return JSON(c, http.StatusOK, data) }

// Accepted is used when work was started but not awaited.
func Accepted(c echo.Context, data any) error { return JSON(c, http.StatusAccepted, data) }

// Fail renders err. AppError and Errors keep their status; anything else
// becomes a 500 without exposing the cause.
func Fail(c echo.Context, err error) error {
	var list Errors
	if errors.As(err, &list) {
		return failWith(c, list.status(), list)
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return failWith(c, appErr.Status, Errors{appErr})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return failWith(c, he.Code, Errors{NewError(he.Code, "%v", he.Message)})
	}
	return failWith(c, http.StatusInternalServerError, Errors{NewError(http.StatusInternalServerError, "something went wrong")})
}

func failWith(c echo.Context, status int, errs Errors) error {
	return c.JSON(status, Envelope{Status: status, Message: http.StatusText(status), Errors: errs})
}
