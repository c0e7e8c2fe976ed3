package redisclient

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Host     string
	Port     int
	Password string
	// PingTimeout bounds the startup connectivity check, 5s when zero.
	PingTimeout time.Duration
}

// NewRedisClient connects and pings once so a wrong address fails at start
// instead of on the first room request.
func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}

	r := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		r.Close()
		return nil, fmt.Errorf("ping %s: %w", r.Options().Addr, err)
	}

	return r, nil
}
