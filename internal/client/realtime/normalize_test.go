package realtime

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "member_name", snakeCase("memberName"))
	assert.Equal(t, "is_host", snakeCase("isHost"))
	assert.Equal(t, "room_id", snakeCase("room_id"))
	assert.Equal(t, "id", snakeCase("id"))
}

func TestDecodeMemberAcceptsBothShapes(t *testing.T) {
	camel, err := decodeMember(json.RawMessage(`{"id":"m1","roomId":"r1","memberName":"Bob","isHost":true,"isOnline":true}`))
	require.NoError(t, err)
	snake, err := decodeMember(json.RawMessage(`{"id":"m1","room_id":"r1","member_name":"Bob","is_host":true,"is_online":true}`))
	require.NoError(t, err)

	assert.Equal(t, snake, camel)
	assert.Equal(t, domain.Member{ID: "m1", RoomID: "r1", MemberName: "Bob", IsHost: true, IsOnline: true}, camel)
}

func TestDecodeMemberPrefersSnakeCase(t *testing.T) {
	member, err := decodeMember(json.RawMessage(`{"id":"m1","memberName":"camel","member_name":"snake"}`))
	require.NoError(t, err)
	assert.Equal(t, "snake", member.MemberName)
}

func TestDecodeSyncEventKeepsPayloadKeys(t *testing.T) {
	event, err := decodeSyncEvent(json.RawMessage(`{"id":"e1","memberId":"m1","eventType":"seek","eventData":{"currentTime":12.5}}`))
	require.NoError(t, err)

	assert.Equal(t, domain.EventTypeSeek, event.EventType)
	assert.Equal(t, "m1", event.MemberID)
	require.NotNil(t, event.EventData.CurrentTime)
	assert.Equal(t, 12.5, *event.EventData.CurrentTime)
}

func TestMergeRoomOverlaysPresentFields(t *testing.T) {
	room := domain.Room{
		ID:                 "r1",
		RoomCode:           "ABC123",
		MediaID:            "1399",
		MediaType:          domain.MediaTypeTV,
		CurrentServerIndex: 1,
		CurrentSeason:      domain.Int(1),
		CurrentEpisode:     domain.Int(1),
		IsActive:           true,
	}

	merged, err := mergeRoom(room, json.RawMessage(`{"currentServerIndex":4,"current_episode":3,"is_playing":true}`))
	require.NoError(t, err)

	assert.Equal(t, 4, merged.CurrentServerIndex)
	assert.Equal(t, 3, merged.EpisodeOr(0))
	assert.Equal(t, 1, merged.SeasonOr(0))
	assert.True(t, merged.IsPlaying)
	assert.Equal(t, "ABC123", merged.RoomCode)

	_, err = mergeRoom(room, json.RawMessage(`not json`))
	assert.Error(t, err)
}
