package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nishchay-veer/canvas-app/internal/auth"
	"github.com/nishchay-veer/canvas-app/internal/config"
	"github.com/nishchay-veer/canvas-app/internal/domain"
	"github.com/nishchay-veer/canvas-app/internal/metrics"
	"github.com/nishchay-veer/canvas-app/internal/ws"
)

// Repositories bundles the durable stores the server depends on.
type Repositories struct {
	Users  domain.UserRepository
	Rooms  domain.RoomRepository
	Shapes domain.ShapeRepository
	Chats  domain.ChatRepository
}

// RedisChecker is a minimal interface for Redis health checks. A nil
// checker means the instance runs without Redis.
type RedisChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	repos       Repositories
	verifier    *auth.Verifier
	registry    *ws.Registry
	broadcaster *ws.Broadcaster
	wsMetrics   *metrics.WebSocketMetrics
	promReg     *prometheus.Registry
	db          *pgxpool.Pool
	redis       RedisChecker
	startTime   time.Time
}

// NewServer wires the HTTP surface: REST API, websocket endpoint and
// observability routes. The redis checker may be nil when the instance
// runs standalone.
func NewServer(
	cfg *config.Config,
	repos Repositories,
	verifier *auth.Verifier,
	registry *ws.Registry,
	broadcaster *ws.Broadcaster,
	wsMetrics *metrics.WebSocketMetrics,
	promReg *prometheus.Registry,
	db *pgxpool.Pool,
	redisChecker RedisChecker,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:        e,
		config:      cfg,
		repos:       repos,
		verifier:    verifier,
		registry:    registry,
		broadcaster: broadcaster,
		wsMetrics:   wsMetrics,
		promReg:     promReg,
		db:          db,
		redis:       redisChecker,
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
