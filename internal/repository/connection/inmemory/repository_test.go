package inmemory

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServerConns returns n server side websocket connections.
func newServerConns(t *testing.T, n int) []*websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, n)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	result := make([]*websocket.Conn, 0, n)
	for i := 0; i < n; i++ {
		client, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })
		result = append(result, <-conns)
	}

	return result
}

func TestRepo(t *testing.T) {
	r := NewRepo(slog.New(slog.NewTextHandler(io.Discard, nil)))
	conns := newServerConns(t, 3)

	require.NoError(t, r.Add(conns[0], connection.Info{RoomID: "a", Table: "members"}))
	require.NoError(t, r.Add(conns[1], connection.Info{RoomID: "a", Table: "events"}))
	require.NoError(t, r.Add(conns[2], connection.Info{RoomID: "b", Table: "rooms"}))
	assert.ErrorIs(t, r.Add(conns[0], connection.Info{RoomID: "a"}), connection.ErrAlreadyExists)

	assert.Equal(t, 2, r.CountByRoom("a"))
	assert.Equal(t, 1, r.CountByRoom("b"))
	assert.Equal(t, 3, r.Count())

	info, err := r.RemoveByConn(conns[1])
	require.NoError(t, err)
	assert.Equal(t, "events", info.Table)
	assert.Equal(t, 1, r.CountByRoom("a"))

	_, err = r.RemoveByConn(conns[1])
	assert.ErrorIs(t, err, connection.ErrNotFound)

	assert.Equal(t, 2, r.CloseAll())
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, r.CountByRoom("a"))
}
