package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pscheid92/livewire/internal/config"
	"github.com/pscheid92/livewire/internal/domain"
	"github.com/pscheid92/livewire/internal/heartbeat"
	"github.com/pscheid92/livewire/internal/hub"
)

// eventPublisher pushes committed events onto the broadcast bus.
type eventPublisher interface {
	Publish(ctx context.Context, channel domain.Channel, payload []byte) error
}

// presenceReader answers cached online checks for single users.
type presenceReader interface {
	IsOnline(ctx context.Context, userID string) bool
	Invalidate(userID string)
}

// presenceStore covers the uncached store operations the handlers need.
type presenceStore interface {
	MarkOnline(ctx context.Context, userID string, connID uuid.UUID) error
	MarkOffline(ctx context.Context, userID string) error
	IsOnlineBatch(ctx context.Context, userIDs []string) map[string]bool
}

// signalRelay delivers call-signaling messages to locally registered peers.
type signalRelay interface {
	Relay(kind domain.SignalKind, toUserID string, payload []byte) bool
}

// redisPinger verifies Redis reachability for readiness checks.
type redisPinger interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

// processLister reports the live processes sharing the broadcast bus.
type processLister interface {
	ActiveProcesses(ctx context.Context) ([]string, error)
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	registry  *hub.Registry
	monitor   *heartbeat.Monitor
	presence  presenceReader
	store     presenceStore
	publisher eventPublisher
	relay     signalRelay
	rdb       redisPinger
	processes processLister
	limiter   *GlobalConnectionLimiter
	clock     clockwork.Clock
}

// Deps bundles the collaborators the server routes traffic to.
type Deps struct {
	Registry  *hub.Registry
	Monitor   *heartbeat.Monitor
	Presence  presenceReader
	Store     presenceStore
	Publisher eventPublisher
	Relay     signalRelay
	Redis     redisPinger
	Processes processLister
	Clock     clockwork.Clock
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	srv := &Server{
		echo:      e,
		config:    cfg,
		registry:  deps.Registry,
		monitor:   deps.Monitor,
		presence:  deps.Presence,
		store:     deps.Store,
		publisher: deps.Publisher,
		relay:     deps.Relay,
		rdb:       deps.Redis,
		processes: deps.Processes,
		limiter:   NewGlobalConnectionLimiter(cfg.MaxConnections),
		clock:     deps.Clock,
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
