package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/parjafrica/good/internal/bot"
)

// Server exposes bot status and admin controls over HTTP.
type Server struct {
	echo    *echo.Echo
	manager *bot.Manager
}

func NewServer(manager *bot.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{echo: e, manager: manager}

	e.GET("/health", s.health)
	e.GET("/api/v1/bot/status", s.botStatus)

	admin := e.Group("/api/v1/bot", adminMiddleware)
	admin.POST("/run", s.triggerRun)
	admin.POST("/pause", s.pause)
	admin.POST("/resume", s.resume)

	return s
}

// adminMiddleware guards mutating endpoints with a shared secret header.
func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret := os.Getenv("ADMIN_SECRET")
		if secret == "" || c.Request().Header.Get("X-Admin-Secret") != secret {
			return echo.NewHTTPError(http.StatusUnauthorized, "admin secret required")
		}
		return next(c)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type errorEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

type statusResponse struct {
	BotID        string       `json:"bot_id"`
	Name         string       `json:"name"`
	Country      string       `json:"country"`
	Status       string       `json:"status"`
	LastRun      *time.Time   `json:"last_run"`
	TotalFound   int          `json:"total_opportunities_found"`
	ErrorCount   int          `json:"error_count"`
	SuccessRate  float64      `json:"success_rate"`
	RecentErrors []errorEntry `json:"recent_errors"`
}

func (s *Server) botStatus(c echo.Context) error {
	snap := s.manager.Snapshot()
	resp := statusResponse{
		BotID:        snap.BotID,
		Name:         snap.Name,
		Country:      snap.Country,
		Status:       string(snap.Status),
		LastRun:      snap.LastRun,
		TotalFound:   snap.TotalFound,
		ErrorCount:   snap.ErrorCount,
		SuccessRate:  snap.SuccessRate,
		RecentErrors: make([]errorEntry, 0, len(snap.RecentErrors)),
	}
	for _, e := range snap.RecentErrors {
		resp.RecentErrors = append(resp.RecentErrors, errorEntry{At: e.At, Message: e.Message})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) triggerRun(c echo.Context) error {
	s.manager.TriggerRun()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "run scheduled"})
}

func (s *Server) pause(c echo.Context) error {
	s.manager.Pause()
	return c.JSON(http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) resume(c echo.Context) error {
	s.manager.Resume()
	return c.JSON(http.StatusOK, map[string]string{"status": "active"})
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
