package syncevent

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sharetube/watchparty/internal/client/localstore"
	"github.com/sharetube/watchparty/internal/client/notify"
	"github.com/sharetube/watchparty/internal/client/sessionstate"
	"github.com/sharetube/watchparty/internal/client/streamtarget"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu       sync.Mutex
	requests []domain.SyncEventRequest
	err      error
}

func (f *fakeRegistry) SyncEvent(_ context.Context, _ string, req domain.SyncEventRequest) (domain.SyncEventResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return domain.SyncEventResponse{}, f.err
	}
	f.requests = append(f.requests, req)
	return domain.SyncEventResponse{EventID: "e1"}, nil
}

func (f *fakeRegistry) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.requests)
}

type testEnv struct {
	session   *sessionstate.Session
	notifier  *notify.Notifier
	registry  *fakeRegistry
	processor *Processor
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := localstore.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		session:  sessionstate.New(store, logger),
		notifier: notify.New(),
		registry: &fakeRegistry{},
	}
	env.processor = NewProcessor(env.session, streamtarget.NewResolver(store, logger), env.notifier, env.registry, logger, cfg)

	return env
}

func (e *testEnv) connect(self domain.Member) {
	host := domain.Member{ID: "host", RoomID: "r1", MemberName: "Alice", IsHost: true, IsOnline: true}
	e.session.Connect(domain.Room{
		ID:                 "r1",
		RoomCode:           "ABC123",
		MediaID:            "550",
		MediaType:          domain.MediaTypeMovie,
		CurrentServerIndex: 0,
		IsActive:           true,
	}, self, []domain.Member{host, self})
}

var bob = domain.Member{ID: "bob", RoomID: "r1", MemberName: "Bob", IsOnline: true}

func event(memberID string, eventType domain.EventType, data domain.EventData) domain.SyncEvent {
	return domain.SyncEvent{ID: "e", RoomID: "r1", MemberID: memberID, EventType: eventType, EventData: data}
}

func TestHandleWithoutSession(t *testing.T) {
	env := newTestEnv(t, Config{})
	calls := 0
	env.notifier.Play.Subscribe(func(notify.Playback) { calls++ })

	env.processor.Handle(event("host", domain.EventTypePlay, domain.EventData{CurrentTime: domain.Float(3)}))
	assert.Zero(t, calls)
}

func TestHandleOrdering(t *testing.T) {
	t.Run("seek then play", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.connect(bob)

		env.processor.Handle(event("host", domain.EventTypeSeek, domain.EventData{CurrentTime: domain.Float(30)}))
		env.processor.Handle(event("host", domain.EventTypePlay, domain.EventData{CurrentTime: domain.Float(42)}))

		room, _ := env.session.Room()
		assert.Equal(t, 42.0, room.CurrentTime)
		assert.True(t, room.IsPlaying)
	})

	t.Run("play then seek", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.connect(bob)

		env.processor.Handle(event("host", domain.EventTypePlay, domain.EventData{CurrentTime: domain.Float(42)}))
		env.processor.Handle(event("host", domain.EventTypeSeek, domain.EventData{CurrentTime: domain.Float(30)}))

		room, _ := env.session.Room()
		assert.Equal(t, 30.0, room.CurrentTime)
		assert.True(t, room.IsPlaying, "seek leaves the playing flag alone")
	})
}

func TestHandleIgnoresSelfEcho(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.connect(bob)
	before, _ := env.session.Room()

	calls := 0
	env.notifier.ServerChange.Subscribe(func(notify.ServerChange) { calls++ })
	env.notifier.Pause.Subscribe(func(notify.Playback) { calls++ })

	env.processor.Handle(event("bob", domain.EventTypeServerChange, domain.EventData{ServerIndex: domain.Int(4)}))
	env.processor.Handle(event("bob", domain.EventTypePause, domain.EventData{CurrentTime: domain.Float(99)}))

	after, _ := env.session.Room()
	assert.Equal(t, before, after)
	assert.Zero(t, calls)
}

func TestHandleServerChange(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.connect(bob)

	var got []notify.ServerChange
	env.notifier.ServerChange.Subscribe(func(n notify.ServerChange) { got = append(got, n) })

	env.processor.Handle(event("host", domain.EventTypeServerChange, domain.EventData{ServerIndex: domain.Int(2)}))
	env.processor.Handle(event("host", domain.EventTypeServerChange, domain.EventData{}))

	room, _ := env.session.Room()
	assert.Equal(t, 2, room.CurrentServerIndex)
	assert.Equal(t, []notify.ServerChange{{MemberID: "host", ServerIndex: 2}}, got)
}

func TestHandleForceSync(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.connect(bob)

	var got notify.ForceSync
	env.notifier.ForceSync.Subscribe(func(n notify.ForceSync) { got = n })

	env.processor.Handle(event("host", domain.EventTypeForceSync, domain.EventData{
		CurrentTime: domain.Float(300),
		ServerIndex: domain.Int(5),
	}))

	assert.Equal(t, "https://vidlink.pro/movie/550?startAt=300", got.URL)
	assert.Equal(t, 300.0, got.CurrentTime)

	room, _ := env.session.Room()
	assert.Equal(t, 5, room.CurrentServerIndex)
	assert.Equal(t, 300.0, room.CurrentTime)
}

func TestHandleUnknownType(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.connect(bob)
	before, _ := env.session.Room()

	assert.NotPanics(t, func() {
		env.processor.Handle(event("host", "rewind", domain.EventData{CurrentTime: domain.Float(1)}))
	})

	after, _ := env.session.Room()
	assert.Equal(t, before, after)
	assert.Empty(t, env.processor.Timestamps())
}

func TestMemberTimestampsAreCoalesced(t *testing.T) {
	env := newTestEnv(t, Config{TimestampInterval: time.Hour})
	env.connect(bob)

	published := 0
	env.notifier.MemberTimestamp.Subscribe(func(notify.MemberTimestamp) { published++ })

	for i := 0; i < 5; i++ {
		env.processor.Handle(event("host", domain.EventTypeSeek, domain.EventData{CurrentTime: domain.Float(float64(i))}))
	}

	assert.Equal(t, 1, published)
	assert.Equal(t, 4.0, env.processor.Timestamps()["host"].CurrentTime)

	env.processor.Reset()
	assert.Empty(t, env.processor.Timestamps())
}

func TestMemberTimestampsPublishLatestAfterBurst(t *testing.T) {
	env := newTestEnv(t, Config{TimestampInterval: 50 * time.Millisecond})
	env.connect(bob)

	var (
		mu        sync.Mutex
		published []float64
	)
	env.notifier.MemberTimestamp.Subscribe(func(ts notify.MemberTimestamp) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, ts.CurrentTime)
	})
	snapshot := func() []float64 {
		mu.Lock()
		defer mu.Unlock()
		return append([]float64(nil), published...)
	}

	for i := 0; i < 5; i++ {
		env.processor.Handle(event("host", domain.EventTypeSeek, domain.EventData{CurrentTime: domain.Float(float64(i))}))
	}
	assert.Equal(t, []float64{0}, snapshot())

	require.Eventually(t, func() bool {
		return len(snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []float64{0, 4}, snapshot())

	time.Sleep(150 * time.Millisecond)
	assert.Len(t, snapshot(), 2, "nothing new to announce")
}

func TestSendSyncEvent(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		env := newTestEnv(t, Config{})

		_, err := env.processor.SendSyncEvent(context.Background(), domain.EventTypePlay, domain.EventData{})
		assert.ErrorIs(t, err, domain.ErrNotConnected)
		assert.Zero(t, env.registry.count())
	})

	t.Run("host only", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.connect(bob)

		_, err := env.processor.SendSyncEvent(context.Background(), domain.EventTypeServerChange, domain.EventData{ServerIndex: domain.Int(1)})
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
		assert.Zero(t, env.registry.count())
	})

	t.Run("self notification", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.connect(bob)

		var got []notify.Playback
		env.notifier.Play.Subscribe(func(n notify.Playback) { got = append(got, n) })

		resp, err := env.processor.SendSyncEvent(context.Background(), domain.EventTypePlay, domain.EventData{CurrentTime: domain.Float(12)})
		require.NoError(t, err)
		assert.Equal(t, "e1", resp.EventID)
		require.Len(t, got, 1)
		assert.True(t, got[0].Self)
		assert.Equal(t, 12.0, env.processor.Timestamps()["bob"].CurrentTime)
	})

	t.Run("throttle", func(t *testing.T) {
		env := newTestEnv(t, Config{SendThrottle: time.Hour})
		env.connect(bob)

		_, err := env.processor.SendSyncEvent(context.Background(), domain.EventTypePlay, domain.EventData{})
		require.NoError(t, err)
		_, err = env.processor.SendSyncEvent(context.Background(), domain.EventTypePause, domain.EventData{})
		assert.ErrorIs(t, err, ErrThrottled)
		assert.Equal(t, 1, env.registry.count())
	})

	t.Run("registry failure", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.connect(bob)
		env.registry.err = domain.ErrTransport

		_, err := env.processor.SendSyncEvent(context.Background(), domain.EventTypeSeek, domain.EventData{CurrentTime: domain.Float(5)})
		assert.ErrorIs(t, err, domain.ErrTransport)

		room, _ := env.session.Room()
		assert.Zero(t, room.CurrentTime)
	})
}
