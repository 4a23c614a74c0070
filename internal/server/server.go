package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/MessaoudiOussama/market-analytics/internal/config"
	apperrors "github.com/MessaoudiOussama/market-analytics/internal/errors"
	"github.com/MessaoudiOussama/market-analytics/internal/pipeline"
	"github.com/MessaoudiOussama/market-analytics/internal/platform/reqid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	service   *pipeline.Service
	db        *pgxpool.Pool
	redis     *goredis.Client
	clock     clockwork.Clock
	startedAt time.Time
}

func NewServer(cfg *config.Config, service *pipeline.Service, db *pgxpool.Pool, redis *goredis.Client, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestIDMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		service:   service,
		db:        db,
		redis:     redis,
		clock:     clock,
		startedAt: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// requestIDMiddleware assigns every request a short ID and threads it
// through the request context so log records carry it.
func requestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = reqid.NewID()
			}
			ctx := reqid.WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
