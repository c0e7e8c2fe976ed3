package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/controller"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	"github.com/sharetube/watchparty/internal/repository/room/redis"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/redisclient"
)

type AppConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	RedisPort     int           `json:"redis_port"`
	RedisHost     string        `json:"redis_host"`
	RedisPassword string        `json:"-"`
	RoomTTL       time.Duration `json:"room_ttl"`
	CodeAttempts  int           `json:"code_attempts"`
	EventsLimit   int           `json:"events_limit"`
	RateLimit     int           `json:"rate_limit"`
	CORS          bool          `json:"cors"`
}

func (cfg *AppConfig) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.RoomTTL < time.Minute {
		return fmt.Errorf("room ttl must be at least a minute")
	}
	if cfg.CodeAttempts < 1 {
		return fmt.Errorf("code attempts must be greater than 0")
	}
	if cfg.EventsLimit < 1 {
		return fmt.Errorf("events limit must be greater than 0")
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

func NewLogger(level string) (*slog.Logger, error) {
	return NewWriterLogger(os.Stdout, level)
}

func NewWriterLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

// NewHandler wires the registry over rc. closeConns closes every open
// realtime connection.
func NewHandler(rc *goredis.Client, logger *slog.Logger, cfg *AppConfig) (handler http.Handler, closeConns func() int) {
	roomRepo := redis.NewRepo(rc, logger, cfg.RoomTTL, int64(cfg.EventsLimit))
	connectionRepo := inmemory.NewRepo(logger)
	roomService := room.NewService(roomRepo, logger, cfg.CodeAttempts)
	controller := controller.NewController(roomService, connectionRepo, logger, controller.Config{
		RateLimit: cfg.RateLimit,
		CORS:      cfg.CORS,
	})

	return controller.GetMux(), connectionRepo.CloseAll
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	handler, closeConns := NewHandler(rc, logger, cfg)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	shutdownErr := make(chan error, 1)
	go func() {
		select {
		case <-sig:
		case <-serverCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// hijacked websocket connections are not tracked by the server
		closeConns()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.InfoContext(ctx, "server stopped")

	return nil
}
