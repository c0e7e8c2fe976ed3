package room

import "github.com/sharetube/watchparty/internal/domain"

// Room is the hash stored under room:{id}. Times are unix millis,
// season and episode are 0 when absent.
type Room struct {
	RoomCode           string  `redis:"room_code"`
	HostName           string  `redis:"host_name"`
	MediaID            string  `redis:"media_id"`
	MediaType          string  `redis:"media_type"`
	CurrentServerIndex int     `redis:"current_server_index"`
	CurrentSeason      int     `redis:"current_season"`
	CurrentEpisode     int     `redis:"current_episode"`
	CurrentTime        float64 `redis:"current_time"`
	IsPlaying          bool    `redis:"is_playing"`
	CreatedAt          int64   `redis:"created_at"`
	LastActivity       int64   `redis:"last_activity"`
	IsActive           bool    `redis:"is_active"`
}

type Member struct {
	RoomID     string `redis:"room_id"`
	MemberName string `redis:"member_name"`
	IsHost     bool   `redis:"is_host"`
	IsOnline   bool   `redis:"is_online"`
	JoinedAt   int64  `redis:"joined_at"`
	LastSeen   int64  `redis:"last_seen"`
}

// ChangeSubscription streams changes published for one room and table.
type ChangeSubscription interface {
	Changes() <-chan domain.Change
	Close() error
}
