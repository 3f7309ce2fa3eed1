package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Bind reads query parameters and the body into req, fills `default` tags,
// then validates it. Failures come back as Errors with status 400.
func Bind(c echo.Context, req any) error {
	// echo only binds the query string for GET, DELETE and HEAD
	if m := c.Request().Method; m != http.MethodGet && m != http.MethodDelete && m != http.MethodHead {
		if err := (&echo.DefaultBinder{}).BindQueryParams(c, req); err != nil {
			return bindErrors(err)
		}
	}
	if err := c.Bind(req); err != nil {
		return bindErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return bindErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return bindErrors(err)
	}
	return nil
}

func bindErrors(err error) Errors {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
		}
		return Errors{NewError(http.StatusBadRequest, "%s", msg)}
	}

	out := make(Errors, 0, len(fields))
	for _, fe := range fields {
		e := &AppError{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Status:  http.StatusBadRequest,
		}
		if key, ok := paramKeys[fe.Tag()]; ok {
			e.WithParam(key, fieldParam(fe))
		}
		out = append(out, e)
	}
	return out
}

var tagMessages = map[string]string{
	"required": "%s is required",
	"datetime": "%s must be a date formatted as %s",
	"oneof":    "%s must be one of: %s",
	"gt":       "%s must be greater than %s",
	"gte":      "%s must be greater than or equal to %s",
	"lt":       "%s must be less than %s",
	"lte":      "%s must be less than or equal to %s",
	"min":      "%s must be at least %s",
	"max":      "%s must be at most %s",
}

var paramKeys = map[string]string{
	"min":      "min",
	"gte":      "min",
	"max":      "max",
	"lte":      "max",
	"gt":       "value",
	"lt":       "value",
	"oneof":    "options",
	"datetime": "layout",
}

func fieldMessage(fe validator.FieldError) string {
	tmpl, ok := tagMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf(tmpl, fe.Field())
	case "oneof":
		param = strings.ReplaceAll(param, " ", ", ")
	case "min", "max":
		if fe.Type().Kind() == reflect.String {
			tmpl += " characters"
		}
	}
	return fmt.Sprintf(tmpl, fe.Field(), param)
}

func fieldParam(fe validator.FieldError) any {
	if fe.Tag() == "oneof" {
		return strings.Fields(fe.Param())
	}
	return fe.Param()
}
