package watchparty

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/watchparty/internal/client/localstore"
	"github.com/sharetube/watchparty/internal/client/notify"
	"github.com/sharetube/watchparty/internal/client/realtime"
	"github.com/sharetube/watchparty/internal/client/registry"
	"github.com/sharetube/watchparty/internal/client/sessionstate"
	"github.com/sharetube/watchparty/internal/client/streamtarget"
	"github.com/sharetube/watchparty/internal/client/syncevent"
)

type Config struct {
	ServerURL string
	// StateDir is where the session survives restarts. Empty keeps it in
	// memory.
	StateDir       string
	RequestTimeout time.Duration
	RefreshDelay   time.Duration
	SendThrottle   time.Duration
	Realtime       realtime.Config
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
		RefreshDelay:   time.Second,
		SendThrottle:   500 * time.Millisecond,
		Realtime:       realtime.DefaultConfig(),
	}
}

// Client owns every client component of one user.
type Client struct {
	*Manager
	Processor *syncevent.Processor
	Resolver  *streamtarget.Resolver
	Notifier  *notify.Notifier
	Bridge    *realtime.Bridge

	store *localstore.Store
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	store, err := localstore.Open(cfg.StateDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}

	reg, err := registry.NewClient(registry.Config{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.RequestTimeout,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	session := sessionstate.New(store, logger)
	resolver := streamtarget.NewResolver(store, logger)
	notifier := notify.New()
	processor := syncevent.NewProcessor(session, resolver, notifier, reg, logger, syncevent.Config{
		SendThrottle: cfg.SendThrottle,
	})

	realtimeCfg := cfg.Realtime
	if realtimeCfg.RequestTimeout == 0 {
		realtimeCfg.RequestTimeout = cfg.RequestTimeout
	}
	bridge := realtime.NewBridge(reg, realtime.NewTransport(logger), session, processor, resolver, notifier, logger, realtimeCfg)

	manager := NewManager(reg, bridge, processor, session, notifier, logger, ManagerConfig{
		RefreshDelay:   cfg.RefreshDelay,
		RequestTimeout: cfg.RequestTimeout,
	})

	return &Client{
		Manager:   manager,
		Processor: processor,
		Resolver:  resolver,
		Notifier:  notifier,
		Bridge:    bridge,
		store:     store,
	}, nil
}

// Close stops realtime activity and closes the local state. The session
// stays persisted so a later Initialize can resume it.
func (c *Client) Close() error {
	c.Manager.mu.Lock()
	if c.Manager.refreshTimer != nil {
		c.Manager.refreshTimer.Stop()
		c.Manager.refreshTimer = nil
	}
	c.Manager.mu.Unlock()

	c.Bridge.Teardown()
	return c.store.Close()
}
