package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"Pace/internal/domain/models"
	"Pace/internal/service/ratelimit"
	"Pace/internal/usecase"
	xhttp "Pace/pkg/http"
	xlogger "Pace/pkg/logger"
	"Pace/pkg/util"
)

// Dashboard is the part of the refresh coordinator the HTTP layer drives.
type Dashboard interface {
	State() models.DashboardState
	StateWithGeneration() (models.DashboardState, uint64)
	Generation() uint64
	Refresh(date time.Time) *usecase.RefreshTicket
	Subscribe(obs usecase.Observer) (unsubscribe func())
}

// Defaults are the display settings used when a request leaves them out.
type Defaults struct {
	Goal     int
	Unit     models.DistanceUnit
	Location *time.Location
}

type DashboardEchoHandler struct {
	logger   *xlogger.Logger
	dash     Dashboard
	defaults Defaults
	limiter  *ratelimit.Limiter
	stream   StreamConfig
}

func NewDashboardEchoHandler(logger *xlogger.Logger, dash Dashboard, defaults Defaults, limiter *ratelimit.Limiter) *DashboardEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if defaults.Location == nil {
		defaults.Location = time.Local
	}
	if defaults.Unit == "" {
		defaults.Unit = models.UnitMetric
	}
	return &DashboardEchoHandler{
		logger:   logger,
		dash:     dash,
		defaults: defaults,
		limiter:  limiter,
		stream:   defaultStreamConfig(),
	}
}

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/dashboard")
	g.GET("", h.Get)
	g.POST("/refresh", h.Refresh)
	g.GET("/days", h.Days)
	g.GET("/stream", h.Stream)
}

func (h *DashboardEchoHandler) display(goal int, unit string) (int, models.DistanceUnit) {
	if goal == 0 {
		goal = h.defaults.Goal
	}
	u, ok := models.ParseDistanceUnit(unit)
	if !ok {
		u = h.defaults.Unit
	}
	return goal, u
}

// Get returns the current snapshot rendered for display.
func (h *DashboardEchoHandler) Get(c echo.Context) error {
	req := &models.DashboardRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.Fail(c, err)
	}
	goal, unit := h.display(req.Goal, req.Unit)

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.OK(c, models.NewDashboardView(h.dash.State(), goal, unit))
}

// Days lists the trailing days for the day picker.
func (h *DashboardEchoHandler) Days(c echo.Context) error {
	return xhttp.OK(c, models.NewDayOptions(h.dash.State()))
}

// Refresh selects a day (or keeps the selection) and reloads it. With wait it
// blocks until that refresh resolves or timeout_ms elapses.
func (h *DashboardEchoHandler) Refresh(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		h.logger.Warn("dashboard refresh rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.Fail(c, xhttp.NewError(http.StatusTooManyRequests, "too many refresh requests"))
	}

	req := &models.RefreshRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.Fail(c, err)
	}
	goal, unit := h.display(req.Goal, req.Unit)

	var date time.Time
	if req.Date != "" {
		d, ok := util.ParseDate(req.Date, h.defaults.Location)
		if !ok {
			return xhttp.Fail(c, xhttp.NewError(http.StatusBadRequest, "invalid date %q", req.Date))
		}
		date = d
	}

	ticket := h.dash.Refresh(date)
	if !req.Wait {
		return xhttp.Accepted(c, h.refreshResponse(ticket, "", goal, unit))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Duration(req.Timeout)*time.Millisecond)
	defer cancel()
	outcome, err := ticket.Wait(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && outcome == "":
		return xhttp.Fail(c, xhttp.NewError(http.StatusGatewayTimeout, "refresh still running").
			WithParam("generation", ticket.Generation))
	case errors.Is(err, context.Canceled) && outcome == "":
		return c.NoContent(http.StatusRequestTimeout)
	case outcome == usecase.OutcomeFailed:
		appErr := xhttp.NewError(http.StatusServiceUnavailable, "health data unavailable").WithError(err).
			WithParam("generation", ticket.Generation)
		var fe *models.FetchError
		if errors.As(err, &fe) {
			failed := make([]string, 0, len(fe.Failed))
			for _, m := range fe.FailedMetrics() {
				failed = append(failed, string(m))
			}
			appErr = appErr.WithParam("failed", failed)
		}
		return xhttp.Fail(c, appErr)
	}

	return xhttp.OK(c, h.refreshResponse(ticket, outcome, goal, unit))
}

func (h *DashboardEchoHandler) refreshResponse(t *usecase.RefreshTicket, o usecase.Outcome, goal int, unit models.DistanceUnit) models.RefreshResponse {
	state, dataGen := h.dash.StateWithGeneration()
	return models.RefreshResponse{
		Generation:       t.Generation,
		LatestGeneration: h.dash.Generation(),
		DataGeneration:   dataGen,
		Outcome:          string(o),
		Dashboard:        models.NewDashboardView(state, goal, unit),
	}
}
