package http

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError is an error that carries the HTTP status it should be rendered with.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Status  int            `json:"-"`
	Err     error          `json:"-"`
}

var statusCodes = map[int]string{
	http.StatusBadRequest:          "ERR_BAD_REQUEST",
	http.StatusNotFound:            "ERR_NOT_FOUND",
	http.StatusRequestTimeout:      "ERR_REQUEST_TIMEOUT",
	http.StatusTooManyRequests:     "ERR_RATE_LIMITED",
	http.StatusInternalServerError: "ERR_INTERNAL",
	http.StatusServiceUnavailable:  "ERR_UNAVAILABLE",
	http.StatusGatewayTimeout:      "ERR_TIMEOUT",
}

// NewError builds an AppError whose code follows from status.
func NewError(status int, format string, a ...any) *AppError {
	code, ok := statusCodes[status]
	if !ok {
		code = "ERR_" + strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
	msg := format
	if len(a) > 0 {
		msg = fmt.Sprintf(format, a...)
	}
	return &AppError{Code: code, Message: msg, Status: status}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithParam attaches a detail that is rendered with the error.
func (e *AppError) WithParam(key string, value any) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]any)
	}
	e.Params[key] = value
	return e
}

// WithError records the cause for errors.Is and errors.As. It is never rendered.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// Errors reports several AppErrors at once, e.g. every invalid field of a request.
type Errors []*AppError

func (es Errors) Error() string {
	msgs := make([]string, 0, len(es))
	for _, e := range es {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (es Errors) status() int {
	if len(es) == 0 || es[0].Status == 0 {
		return http.StatusBadRequest
	}
	return es[0].Status
}
