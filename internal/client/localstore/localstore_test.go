package localstore

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type session struct {
	RoomID string   `json:"room_id"`
	Names  []string `json:"names"`
}

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestSetGetDelete(t *testing.T) {
	s := newTestStore(t, "")

	assert.Equal(t, session{RoomID: "none"}, Get(s, "session", session{RoomID: "none"}))

	want := session{RoomID: "r1", Names: []string{"Alice", "Bob"}}
	require.NoError(t, s.Set("session", want))
	assert.Equal(t, want, Get(s, "session", session{}))

	require.NoError(t, s.Delete("session"))
	assert.Equal(t, session{}, Get(s, "session", session{}))
	require.NoError(t, s.Delete("session"))
}

func TestGetCorruptValueFallsBackToDefault(t *testing.T) {
	s := newTestStore(t, "")

	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+"session"), []byte("{not json"))
	}))

	def := session{RoomID: "default"}
	assert.Equal(t, def, Get(s, "session", def))

	var members []string
	assert.Nil(t, Get(s, "session", members))
}

func TestValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(dir, logger)
	require.NoError(t, err)
	require.NoError(t, s.Set("count", 3))
	require.NoError(t, s.Close())

	s, err = Open(dir, logger)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 3, Get(s, "count", 0))
}
