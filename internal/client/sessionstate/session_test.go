package sessionstate

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sharetube/watchparty/internal/client/localstore"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testRoom() domain.Room {
	return domain.Room{
		ID:             "r1",
		RoomCode:       "ABC123",
		MediaID:        "1399",
		MediaType:      domain.MediaTypeTV,
		CurrentSeason:  domain.Int(1),
		CurrentEpisode: domain.Int(2),
		IsActive:       true,
		CreatedAt:      time.UnixMilli(1000).UTC(),
	}
}

func TestConnectAndSnapshot(t *testing.T) {
	store, err := localstore.Open("", testLogger)
	require.NoError(t, err)
	defer store.Close()

	s := New(store, testLogger)
	assert.False(t, s.Connected())

	alice := domain.Member{ID: "m1", RoomID: "r1", MemberName: "Alice", IsHost: true, IsOnline: true}
	s.Connect(testRoom(), alice, []domain.Member{alice})

	snap := s.Snapshot()
	require.True(t, snap.Connected())
	*snap.Room.CurrentSeason = 9
	snap.Members[0].MemberName = "Mallory"

	room, ok := s.Room()
	require.True(t, ok)
	assert.Equal(t, 1, room.SeasonOr(0), "snapshots are copies")
	assert.Equal(t, "Alice", s.Members()[0].MemberName)
}

func TestRestoreFromStore(t *testing.T) {
	dir := t.TempDir()
	store, err := localstore.Open(dir, testLogger)
	require.NoError(t, err)

	bob := domain.Member{ID: "m2", RoomID: "r1", MemberName: "Bob", IsOnline: true}
	New(store, testLogger).Connect(testRoom(), bob, []domain.Member{bob})
	require.NoError(t, store.Close())

	store, err = localstore.Open(dir, testLogger)
	require.NoError(t, err)
	defer store.Close()

	snap := New(store, testLogger).Snapshot()
	require.True(t, snap.Connected())
	assert.Equal(t, "ABC123", snap.Room.RoomCode)
	assert.Equal(t, "Bob", snap.Member.MemberName)
	assert.Len(t, snap.Members, 1)
}

func TestSetMembersRefreshesSelf(t *testing.T) {
	store, err := localstore.Open("", testLogger)
	require.NoError(t, err)
	defer store.Close()

	s := New(store, testLogger)
	assert.False(t, s.SetMembers(nil), "no session")

	bob := domain.Member{ID: "m2", RoomID: "r1", MemberName: "Bob", IsOnline: true}
	s.Connect(testRoom(), bob, []domain.Member{bob})

	promoted := bob
	promoted.IsHost = true
	require.True(t, s.SetMembers([]domain.Member{promoted}))

	member, ok := s.Member()
	require.True(t, ok)
	assert.True(t, member.IsHost)
}

func TestUpdateRoomAndClear(t *testing.T) {
	store, err := localstore.Open("", testLogger)
	require.NoError(t, err)
	defer store.Close()

	s := New(store, testLogger)
	_, ok := s.UpdateRoom(func(room domain.Room) domain.Room {
		t.Fatal("fn must not run without a session")
		return room
	})
	assert.False(t, ok)

	s.Connect(testRoom(), domain.Member{ID: "m1"}, nil)
	room, ok := s.UpdateRoom(func(room domain.Room) domain.Room {
		room.IsPlaying = true
		return room
	})
	require.True(t, ok)
	assert.True(t, room.IsPlaying)

	s.Clear()
	assert.False(t, s.Connected())
	assert.False(t, New(store, testLogger).Connected(), "persisted copy is gone")
}
