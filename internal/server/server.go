package server

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tomlord1122/todolist/internal/alarm"
	"github.com/Tomlord1122/todolist/internal/auth"
	"github.com/Tomlord1122/todolist/internal/config"
	"github.com/Tomlord1122/todolist/internal/service"
)

// HealthChecker reports store health. database.Service and repository.MemoryStore implement it.
type HealthChecker interface {
	Health() map[string]string
}

// Deps are the collaborators the HTTP layer needs. Hub and Redis are optional.
type Deps struct {
	Todos  service.TodoService
	Auth   service.AuthService
	Tokens auth.TokenParser
	Health HealthChecker
	Hub    *alarm.Hub
	Redis  *redis.Client
	Logger *slog.Logger
}

type Server struct {
	cfg            *config.Config
	todoService    service.TodoService
	authService    service.AuthService
	tokens         auth.TokenParser
	health         HealthChecker
	hub            *alarm.Hub
	metrics        *Metrics
	limiter        *RateLimiter
	trustedProxies []netip.Prefix
	logger         *slog.Logger
}

func New(cfg *config.Config, deps Deps) *Server {
	metrics := NewMetrics()
	return &Server{
		cfg:            cfg,
		todoService:    deps.Todos,
		authService:    deps.Auth,
		tokens:         deps.Tokens,
		health:         deps.Health,
		hub:            deps.Hub,
		metrics:        metrics,
		limiter:        NewRateLimiter(deps.Redis, cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow, metrics, deps.Logger),
		trustedProxies: parseTrustedProxies(cfg.TrustedProxies),
		logger:         deps.Logger,
	}
}

// NewServer builds the http.Server listening on the configured port.
func NewServer(cfg *config.Config, deps Deps) *http.Server {
	appServer := New(cfg, deps)

	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(deps.Logger.Handler(), slog.LevelError),
	}
}
