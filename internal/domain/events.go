package domain

import "time"

type EventType string

const (
	EventTypePlay          EventType = "play"
	EventTypePause         EventType = "pause"
	EventTypeSeek          EventType = "seek"
	EventTypeServerChange  EventType = "server_change"
	EventTypeEpisodeChange EventType = "episode_change"
	EventTypeForceSync     EventType = "force_sync"
)

var EventTypes = []EventType{
	EventTypePlay,
	EventTypePause,
	EventTypeSeek,
	EventTypeServerChange,
	EventTypeEpisodeChange,
	EventTypeForceSync,
}

func (t EventType) Valid() bool {
	for _, eventType := range EventTypes {
		if t == eventType {
			return true
		}
	}

	return false
}

// HostOnly reports whether only the room host may send events of this type.
func (t EventType) HostOnly() bool {
	return t == EventTypeServerChange || t == EventTypeEpisodeChange
}

// EventData is the typed payload of a sync event. Absent fields are nil.
type EventData struct {
	CurrentTime *float64 `json:"currentTime,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	ServerIndex *int     `json:"serverIndex,omitempty"`
	Season      *int     `json:"season,omitempty"`
	Episode     *int     `json:"episode,omitempty"`
}

type SyncEvent struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	MemberID  string    `json:"member_id"`
	EventType EventType `json:"event_type"`
	EventData EventData `json:"event_data"`
	CreatedAt time.Time `json:"created_at"`
}

func Float(v float64) *float64 {
	return &v
}

func Int(v int) *int {
	return &v
}

func Bool(v bool) *bool {
	return &v
}
