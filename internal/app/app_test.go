package app_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/app"
	"github.com/sharetube/watchparty/internal/client/notify"
	"github.com/sharetube/watchparty/internal/client/realtime"
	"github.com/sharetube/watchparty/internal/client/syncevent"
	"github.com/sharetube/watchparty/internal/client/watchparty"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestAppConfigValidate(t *testing.T) {
	valid := func() *app.AppConfig {
		return &app.AppConfig{
			Port:         80,
			LogLevel:     "info",
			RoomTTL:      time.Hour,
			CodeAttempts: 10,
			EventsLimit:  100,
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(cfg *app.AppConfig)
	}{
		{"bad log level", func(cfg *app.AppConfig) { cfg.LogLevel = "loud" }},
		{"port zero", func(cfg *app.AppConfig) { cfg.Port = 0 }},
		{"port too big", func(cfg *app.AppConfig) { cfg.Port = 70000 }},
		{"short ttl", func(cfg *app.AppConfig) { cfg.RoomTTL = time.Second }},
		{"no code attempts", func(cfg *app.AppConfig) { cfg.CodeAttempts = 0 }},
		{"no events", func(cfg *app.AppConfig) { cfg.EventsLimit = 0 }},
		{"negative rate limit", func(cfg *app.AppConfig) { cfg.RateLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewWriterLogger(t *testing.T) {
	_, err := app.NewWriterLogger(io.Discard, "debug")
	require.NoError(t, err)

	_, err = app.NewWriterLogger(io.Discard, "verbose")
	assert.Error(t, err)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	handler, closeConns := app.NewHandler(rc, testLogger, &app.AppConfig{
		RoomTTL:      time.Hour,
		CodeAttempts: 10,
		EventsLimit:  100,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		closeConns()
		srv.Close()
	})

	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *watchparty.Client {
	t.Helper()
	cfg := watchparty.DefaultConfig()
	cfg.ServerURL = srv.URL
	cfg.RefreshDelay = 50 * time.Millisecond
	cfg.SendThrottle = 0
	cfg.Realtime.MemberDebounce = 20 * time.Millisecond
	cfg.Realtime.PreferenceDebounce = 20 * time.Millisecond

	client, err := watchparty.New(cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func waitSubscribed(t *testing.T, c *watchparty.Client) {
	t.Helper()
	require.Eventually(t, func() bool {
		statuses := c.Bridge.Statuses()
		for _, table := range domain.Tables {
			if statuses[table] != realtime.StatusSubscribed {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchPartyEndToEnd(t *testing.T) {
	srv := newServer(t)
	alice := newClient(t, srv)
	bob := newClient(t, srv)
	ctx := context.Background()

	created, err := alice.CreateRoom(ctx, watchparty.CreateRoomParams{
		HostName:      "Alice",
		MediaID:       "550",
		MediaType:     domain.MediaTypeMovie,
		ProviderIndex: 0,
	})
	require.NoError(t, err)
	require.Len(t, created.RoomCode, 6)

	_, err = bob.JoinRoom(ctx, created.RoomCode, "Bob")
	require.NoError(t, err)
	assert.False(t, bob.IsHost())

	waitSubscribed(t, alice)
	waitSubscribed(t, bob)

	t.Run("host changes server", func(t *testing.T) {
		var changes atomic.Int32
		unsubscribe := bob.Notifier.ServerChange.Subscribe(func(c notify.ServerChange) {
			if c.ServerIndex == 2 && !c.Self {
				changes.Add(1)
			}
		})
		defer unsubscribe()

		_, err := alice.Processor.SendSyncEvent(ctx, domain.EventTypeServerChange, domain.EventData{ServerIndex: domain.Int(2)})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return bob.State().Room.CurrentServerIndex == 2
		}, 2*time.Second, 10*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(1), changes.Load())
		assert.Equal(t, 2, alice.State().Room.CurrentServerIndex)
	})

	t.Run("guest cannot change server", func(t *testing.T) {
		_, err := bob.Processor.SendSyncEvent(ctx, domain.EventTypeServerChange, domain.EventData{ServerIndex: domain.Int(3)})
		assert.ErrorIs(t, err, syncevent.ErrHostOnly)
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("guest seeks", func(t *testing.T) {
		seeks := make(chan notify.Playback, 4)
		unsubscribe := alice.Notifier.Seek.Subscribe(func(p notify.Playback) { seeks <- p })
		defer unsubscribe()

		_, err := bob.Processor.SendSyncEvent(ctx, domain.EventTypeSeek, domain.EventData{CurrentTime: domain.Float(120)})
		require.NoError(t, err)

		select {
		case p := <-seeks:
			assert.Equal(t, bob.State().Member.ID, p.MemberID)
			require.NotNil(t, p.CurrentTime)
			assert.Equal(t, 120.0, *p.CurrentTime)
			assert.False(t, p.Self)
		case <-time.After(2 * time.Second):
			t.Fatal("seek was not delivered")
		}
		assert.Equal(t, 120.0, alice.State().Room.CurrentTime)
	})

	t.Run("host leaves", func(t *testing.T) {
		resp, err := alice.LeaveRoom(ctx)
		require.NoError(t, err)
		assert.False(t, resp.RoomClosed)

		require.Eventually(t, func() bool {
			state := bob.State()
			return state.Connected() && len(state.Members) == 1
		}, 2*time.Second, 10*time.Millisecond)
		require.Eventually(t, bob.IsHost, 2*time.Second, 10*time.Millisecond)
	})
}
