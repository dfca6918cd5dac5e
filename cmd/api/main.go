package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tomlord1122/todolist/internal/alarm"
	"github.com/Tomlord1122/todolist/internal/auth"
	"github.com/Tomlord1122/todolist/internal/config"
	"github.com/Tomlord1122/todolist/internal/database"
	"github.com/Tomlord1122/todolist/internal/logger"
	"github.com/Tomlord1122/todolist/internal/repository"
	"github.com/Tomlord1122/todolist/internal/server"
	"github.com/Tomlord1122/todolist/internal/service"
)

// store bundles whichever backend STORE selected.
type store struct {
	todos  repository.TodoRepository
	users  repository.UserRepository
	health server.HealthChecker
	close  func() error
}

func openStore(cfg *config.Config, log *slog.Logger) (*store, error) {
	if cfg.Store == config.StoreMemory {
		mem := repository.NewMemoryStore()
		log.Warn("using in-memory store, data is lost on restart")
		return &store{todos: mem.Todos(), users: mem.Users(), health: mem, close: func() error { return nil }}, nil
	}

	dbService, err := database.New(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	log.Info("running database auto-migration")
	if err := dbService.Migrate(); err != nil {
		_ = dbService.Close()
		return nil, err
	}
	gormDB := dbService.GetDB()
	return &store{
		todos:  repository.NewGormTodoRepository(gormDB),
		users:  repository.NewGormUserRepository(gormDB),
		health: dbService,
		close:  dbService.Close,
	}, nil
}

// connectRedis returns nil when redis is not configured or unreachable; callers fail open.
func connectRedis(cfg config.RedisConfig, log *slog.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, rate limiting and alarm fan-out disabled", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return nil
	}
	log.Info("connected to redis", "addr", cfg.Addr)
	return client
}

func allowOrigins(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
			if prefix, ok := strings.CutSuffix(o, "*"); ok && strings.HasPrefix(origin, prefix) {
				return true
			}
		}
		return false
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	st, err := openStore(cfg, log)
	if err != nil {
		logger.Fatal("failed to open store", "store", cfg.Store, "error", err)
	}

	rdb := connectRedis(cfg.Redis, log)

	hub := alarm.NewHub(log, allowOrigins(cfg.CORS.AllowedOrigins))
	notifiers := alarm.Multi{hub, alarm.LogNotifier{Logger: log}}
	if rdb != nil {
		notifiers = append(notifiers, alarm.NewRedisNotifier(rdb))
	}
	scheduler := alarm.NewScheduler(notifiers, log)
	sweeper := alarm.NewSweeper(st.todos, scheduler, cfg.Alarm.SweepInterval, cfg.Alarm.Horizon, log)

	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)
	deps := server.Deps{
		Todos:  service.NewTodoService(st.todos, scheduler, log),
		Auth:   service.NewAuthService(st.users, tokens, 0, log),
		Tokens: tokens,
		Health: st.health,
		Hub:    hub,
		Redis:  rdb,
		Logger: log,
	}
	apiServer := server.NewServer(cfg, deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", apiServer.Addr, "store", cfg.Store)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully, press Ctrl+C again to force")
	case err := <-serveErr:
		if err != nil {
			log.Error("HTTP server ListenAndServe error", "error", err)
		}
	}
	stop()

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling.
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub.Close()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	wg.Wait()
	scheduler.Stop()

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("closing redis", "error", err)
		}
	}
	if err := st.close(); err != nil {
		log.Error("closing store", "error", err)
	}
	log.Info("server exiting")
}
