package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"Pace/internal/domain/models"
	xhttp "Pace/pkg/http"
	xlogger "Pace/pkg/logger"
	"Pace/pkg/util"
)

type StreamConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	// ReadLimit caps client frames; clients only send control frames.
	ReadLimit int64
}

func defaultStreamConfig() StreamConfig {
	return StreamConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadLimit:    512,
	}
}

// SetStreamConfig overrides websocket timings; zero fields keep their defaults.
func (h *DashboardEchoHandler) SetStreamConfig(cfg StreamConfig) {
	if cfg.PingInterval > 0 {
		h.stream.PingInterval = cfg.PingInterval
	}
	if cfg.WriteTimeout > 0 {
		h.stream.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.ReadLimit > 0 {
		h.stream.ReadLimit = cfg.ReadLimit
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream pushes every published snapshot as a DashboardView over a websocket.
// A slow client only ever sees the latest snapshot.
func (h *DashboardEchoHandler) Stream(c echo.Context) error {
	req := &models.DashboardRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.Fail(c, err)
	}
	goal, unit := h.display(req.Goal, req.Unit)
	ping := time.Duration(util.ParseIntDefault(c.QueryParam("ping_s"), int(h.stream.PingInterval/time.Second))) * time.Second
	if ping <= 0 {
		ping = h.stream.PingInterval
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	latest := make(chan models.DashboardState, 1)
	unsubscribe := h.dash.Subscribe(func(s models.DashboardState) {
		// keep only the newest snapshot
		select {
		case latest <- s:
		default:
			select {
			case <-latest:
			default:
			}
			select {
			case latest <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	conn.SetReadLimit(h.stream.ReadLimit)
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	remote := c.RealIP()
	h.logger.Debug("dashboard stream opened", xlogger.String("remote", remote))
	for {
		select {
		case <-closed:
			h.logger.Debug("dashboard stream closed", xlogger.String("remote", remote))
			return nil
		case s := <-latest:
			_ = conn.SetWriteDeadline(time.Now().Add(h.stream.WriteTimeout))
			if err := conn.WriteJSON(models.NewDashboardView(s, goal, unit)); err != nil {
				h.logger.Debug("dashboard stream write failed", xlogger.Error(err))
				return nil
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.stream.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return nil
			}
		}
	}
}
