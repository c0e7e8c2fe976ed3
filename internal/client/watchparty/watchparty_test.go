package watchparty

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/app"
	"github.com/sharetube/watchparty/internal/client/notify"
	"github.com/sharetube/watchparty/internal/client/realtime"
	"github.com/sharetube/watchparty/internal/client/registry"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestServer(t *testing.T) *httptest.Server {
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

func newTestClient(t *testing.T, srv *httptest.Server, stateDir string) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ServerURL = srv.URL
	cfg.StateDir = stateDir
	cfg.RefreshDelay = 50 * time.Millisecond
	cfg.SendThrottle = 0
	cfg.Realtime.MemberDebounce = 20 * time.Millisecond
	cfg.Realtime.PreferenceDebounce = 20 * time.Millisecond

	client, err := New(cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func createMovieRoom(t *testing.T, c *Client) domain.CreateRoomResponse {
	t.Helper()
	resp, err := c.CreateRoom(context.Background(), CreateRoomParams{
		HostName:  "Alice",
		MediaID:   "550",
		MediaType: domain.MediaTypeMovie,
	})
	require.NoError(t, err)

	return resp
}

func TestCreateRoomValidation(t *testing.T) {
	c := newTestClient(t, newTestServer(t), "")

	_, err := c.CreateRoom(context.Background(), CreateRoomParams{HostName: "Alice", MediaID: "1399", MediaType: domain.MediaTypeTV})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = c.CreateRoom(context.Background(), CreateRoomParams{MediaID: "550", MediaType: domain.MediaTypeMovie})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = c.CreateRoom(context.Background(), CreateRoomParams{HostName: "Alice", MediaID: "550", MediaType: "anime"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.False(t, c.State().Connected())
}

func TestCreateAndJoin(t *testing.T) {
	srv := newTestServer(t)
	alice := newTestClient(t, srv, "")
	bob := newTestClient(t, srv, "")

	created := createMovieRoom(t, alice)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, created.RoomCode)

	state := alice.State()
	require.True(t, state.Connected())
	assert.True(t, state.Member.IsHost)
	assert.Equal(t, created.HostMemberID, state.Member.ID)
	assert.Equal(t, "550", state.Room.MediaID)

	var mu sync.Mutex
	var joined []notify.MemberChange
	alice.Notifier.MemberJoined.Subscribe(func(c notify.MemberChange) {
		mu.Lock()
		defer mu.Unlock()
		joined = append(joined, c)
	})

	// wait for alice's member feed before bob joins
	require.Eventually(t, func() bool {
		return alice.Bridge.Statuses()[domain.TableMembers] == realtime.StatusSubscribed
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := bob.JoinRoom(context.Background(), strings.ToLower(created.RoomCode), "Bob")
	require.NoError(t, err)
	assert.Equal(t, created.RoomID, resp.RoomID)
	assert.Len(t, resp.Members, 2)
	assert.False(t, bob.IsHost())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(joined) == 1 && len(alice.State().Members) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, notify.SourceRealtime, joined[0].Source)
	assert.Equal(t, "Bob", joined[0].Member.MemberName)
}

func TestJoinErrors(t *testing.T) {
	srv := newTestServer(t)
	alice := newTestClient(t, srv, "")
	bob := newTestClient(t, srv, "")
	created := createMovieRoom(t, alice)

	_, err := bob.JoinRoom(context.Background(), "ZZZZZZ", "Bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = bob.JoinRoom(context.Background(), created.RoomCode, "Alice")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = bob.JoinRoom(context.Background(), created.RoomCode, "alice")
	assert.NoError(t, err, "names are compared exactly")

	_, err = bob.JoinRoom(context.Background(), "", "Bob")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestHostLeaveTransfersHost(t *testing.T) {
	srv := newTestServer(t)
	alice := newTestClient(t, srv, "")
	bob := newTestClient(t, srv, "")
	created := createMovieRoom(t, alice)

	_, err := bob.JoinRoom(context.Background(), created.RoomCode, "Bob")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return bob.Bridge.Statuses()[domain.TableMembers] == realtime.StatusSubscribed
	}, 2*time.Second, 10*time.Millisecond)

	reasons := make(chan string, 1)
	alice.Notifier.Disconnected.Subscribe(func(d notify.Disconnected) { reasons <- d.Reason })

	resp, err := alice.LeaveRoom(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.RoomClosed)
	assert.Equal(t, "Successfully left room", resp.Message)
	assert.False(t, alice.State().Connected())
	assert.Equal(t, "left room", <-reasons)

	require.Eventually(t, bob.IsHost, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, bob.State().Members, 1)
}

func TestLastLeaveClosesRoom(t *testing.T) {
	srv := newTestServer(t)
	alice := newTestClient(t, srv, "")
	created := createMovieRoom(t, alice)

	resp, err := alice.LeaveRoom(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.RoomClosed)

	_, err = newTestClient(t, srv, "").JoinRoom(context.Background(), created.RoomCode, "Bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = alice.LeaveRoom(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	alice := newTestClient(t, newTestServer(t), "")
	createMovieRoom(t, alice)

	alice.Disconnect()
	alice.Disconnect()
	assert.False(t, alice.State().Connected())

	_, err := alice.GetRoomData(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestInitializeResumesSession(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()

	first := newTestClient(t, srv, dir)
	created := createMovieRoom(t, first)
	require.NoError(t, first.Close())

	resumed := newTestClient(t, srv, dir)
	require.True(t, resumed.State().Connected())
	require.NoError(t, resumed.Initialize(context.Background()))

	state := resumed.State()
	require.True(t, state.Connected())
	assert.Equal(t, created.RoomID, state.Room.ID)
	require.Eventually(t, func() bool {
		return resumed.Bridge.Statuses()[domain.TableEvents] == realtime.StatusSubscribed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInitializeDropsStaleSession(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()

	first := newTestClient(t, srv, dir)
	created := createMovieRoom(t, first)
	require.NoError(t, first.Close())

	reg, err := registry.NewClient(registry.Config{BaseURL: srv.URL}, testLogger)
	require.NoError(t, err)
	_, err = reg.LeaveRoom(context.Background(), created.RoomID, created.HostMemberID)
	require.NoError(t, err)

	resumed := newTestClient(t, srv, dir)
	err = resumed.Initialize(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, resumed.State().Connected())
}

func TestShareLink(t *testing.T) {
	link, err := BuildShareLink("https://watch.example.com/movie/550", "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "https://watch.example.com/movie/550?room=ABC123", link)

	code, ok := RoomCodeFromLink("https://watch.example.com/movie/550?room=abc123")
	assert.True(t, ok)
	assert.Equal(t, "ABC123", code)

	_, ok = RoomCodeFromLink("https://watch.example.com/movie/550?room=AB")
	assert.False(t, ok)
	_, ok = RoomCodeFromLink("https://watch.example.com/movie/550")
	assert.False(t, ok)

	c := newTestClient(t, newTestServer(t), "")
	_, err = c.ShareLink("https://watch.example.com/")
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	created := createMovieRoom(t, c)
	link, err = c.ShareLink("https://watch.example.com/movie/550")
	require.NoError(t, err)
	code, ok = RoomCodeFromLink(link)
	assert.True(t, ok)
	assert.Equal(t, created.RoomCode, code)
}
