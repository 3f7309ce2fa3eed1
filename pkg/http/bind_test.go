package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bindReq struct {
	Date string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Unit string `query:"unit" json:"unit" default:"metric" validate:"oneof=metric imperial"`
	Goal int    `query:"goal" json:"goal" validate:"gte=0,lte=1000000"`
}

func newCtx(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestBindAppliesDefaults(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/?date=2026-10-18", "")
	var req bindReq
	require.NoError(t, Bind(c, &req))
	assert.Equal(t, "metric", req.Unit)
	assert.Equal(t, "2026-10-18", req.Date)
}

func TestBindReadsQueryOnPost(t *testing.T) {
	c, _ := newCtx(http.MethodPost, "/?date=2026-10-17", `{"goal":9000}`)
	var req bindReq
	require.NoError(t, Bind(c, &req))
	assert.Equal(t, "2026-10-17", req.Date)
	assert.Equal(t, 9000, req.Goal)
}

func TestBindReportsEveryInvalidField(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/?date=18-10-2026&unit=furlong&goal=-1", "")
	var req bindReq
	err := Bind(c, &req)
	require.Error(t, err)

	var errs Errors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 3)
	assert.Equal(t, "ERR_DATETIME", errs[0].Code)
	assert.Equal(t, "Date must be a date formatted as 2006-01-02", errs[0].Message)
	assert.Equal(t, "Unit must be one of: metric, imperial", errs[1].Message)
	assert.Equal(t, []string{"metric", "imperial"}, errs[1].Params["options"])
	assert.Equal(t, "0", errs[2].Params["min"])

	require.NoError(t, Fail(c, err))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.Len(t, env.Errors, 3)
}

func TestFailKeepsAppErrorStatus(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/", "")
	cause := errors.New("provider down")
	appErr := NewError(http.StatusServiceUnavailable, "health data unavailable").WithError(cause).WithParam("generation", 3)
	require.NoError(t, Fail(c, appErr))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_UNAVAILABLE"`)
	assert.Contains(t, rec.Body.String(), `"generation":3`)
	assert.NotContains(t, rec.Body.String(), "provider down")
	assert.ErrorIs(t, appErr, cause)
}

func TestFailHidesUnknownErrors(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/", "")
	require.NoError(t, Fail(c, errors.New("sql: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "something went wrong")
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestNewErrorCodes(t *testing.T) {
	assert.Equal(t, "ERR_RATE_LIMITED", NewError(http.StatusTooManyRequests, "slow down").Code)
	assert.Equal(t, "ERR_CONFLICT", NewError(http.StatusConflict, "x").Code)
	assert.Equal(t, `invalid date "x"`, NewError(http.StatusBadRequest, "invalid date %q", "x").Message)
}
