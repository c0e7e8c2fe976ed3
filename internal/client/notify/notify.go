// Package notify is the typed notification surface the player and UI layers
// subscribe to.
package notify

import (
	"time"

	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/pkg/observer"
)

// Source tells where a membership notification was detected.
type Source string

const (
	SourceRealtime Source = "realtime"
	SourcePolling  Source = "polling"
)

// Playback is raised for play, pause and seek. Self is set for events the
// local member sent.
type Playback struct {
	Type        domain.EventType `json:"type"`
	MemberID    string           `json:"member_id"`
	CurrentTime *float64         `json:"current_time"`
	Duration    *float64         `json:"duration"`
	Self        bool             `json:"self"`
}

type ServerChange struct {
	MemberID    string `json:"member_id"`
	ServerIndex int    `json:"server_index"`
	Self        bool   `json:"self"`
}

type EpisodeChange struct {
	MemberID string `json:"member_id"`
	Season   int    `json:"season"`
	Episode  int    `json:"episode"`
	Self     bool   `json:"self"`
}

// ForceSync asks the player to reload URL at CurrentTime.
type ForceSync struct {
	MemberID    string  `json:"member_id"`
	CurrentTime float64 `json:"current_time"`
	URL         string  `json:"url"`
	Self        bool    `json:"self"`
}

type MemberChange struct {
	Member       domain.Member `json:"member"`
	Source       Source        `json:"source"`
	TotalMembers int           `json:"total_members"`
}

type RoomUpdated struct {
	Room domain.Room `json:"room"`
}

type MemberTimestamp struct {
	MemberID    string    `json:"member_id"`
	CurrentTime float64   `json:"current_time"`
	At          time.Time `json:"at"`
}

type Disconnected struct {
	Reason string `json:"reason"`
}

type Notifier struct {
	Play          *observer.Topic[Playback]
	Pause         *observer.Topic[Playback]
	Seek          *observer.Topic[Playback]
	ServerChange  *observer.Topic[ServerChange]
	EpisodeChange *observer.Topic[EpisodeChange]
	ForceSync     *observer.Topic[ForceSync]

	MemberJoined  *observer.Topic[MemberChange]
	MemberLeft    *observer.Topic[MemberChange]
	MemberUpdated *observer.Topic[MemberChange]

	RoomUpdated     *observer.Topic[RoomUpdated]
	MemberTimestamp *observer.Topic[MemberTimestamp]
	Disconnected    *observer.Topic[Disconnected]
}

func New() *Notifier {
	return &Notifier{
		Play:            observer.NewTopic[Playback](),
		Pause:           observer.NewTopic[Playback](),
		Seek:            observer.NewTopic[Playback](),
		ServerChange:    observer.NewTopic[ServerChange](),
		EpisodeChange:   observer.NewTopic[EpisodeChange](),
		ForceSync:       observer.NewTopic[ForceSync](),
		MemberJoined:    observer.NewTopic[MemberChange](),
		MemberLeft:      observer.NewTopic[MemberChange](),
		MemberUpdated:   observer.NewTopic[MemberChange](),
		RoomUpdated:     observer.NewTopic[RoomUpdated](),
		MemberTimestamp: observer.NewTopic[MemberTimestamp](),
		Disconnected:    observer.NewTopic[Disconnected](),
	}
}

// Playback returns the topic of a play, pause or seek event.
func (n *Notifier) Playback(eventType domain.EventType) (*observer.Topic[Playback], bool) {
	switch eventType {
	case domain.EventTypePlay:
		return n.Play, true
	case domain.EventTypePause:
		return n.Pause, true
	case domain.EventTypeSeek:
		return n.Seek, true
	default:
		return nil, false
	}
}
