package domain

import "time"

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

func (t MediaType) Valid() bool {
	return t == MediaTypeMovie || t == MediaTypeTV
}

// Room is the registry-authoritative record of a watch party.
// CurrentSeason and CurrentEpisode are nil for movies.
type Room struct {
	ID                 string    `json:"id"`
	RoomCode           string    `json:"room_code"`
	HostName           string    `json:"host_name"`
	MediaID            string    `json:"media_id"`
	MediaType          MediaType `json:"media_type"`
	CurrentServerIndex int       `json:"current_server_index"`
	CurrentSeason      *int      `json:"current_season,omitempty"`
	CurrentEpisode     *int      `json:"current_episode,omitempty"`
	CurrentTime        float64   `json:"current_time"`
	IsPlaying          bool      `json:"is_playing"`
	CreatedAt          time.Time `json:"created_at"`
	LastActivity       time.Time `json:"last_activity"`
	IsActive           bool      `json:"is_active"`
}

// Clone returns a deep copy so mirrors are never shared between owners.
func (r Room) Clone() Room {
	if r.CurrentSeason != nil {
		season := *r.CurrentSeason
		r.CurrentSeason = &season
	}
	if r.CurrentEpisode != nil {
		episode := *r.CurrentEpisode
		r.CurrentEpisode = &episode
	}

	return r
}

// SeasonOr returns the current season or def when the room has none.
func (r Room) SeasonOr(def int) int {
	if r.CurrentSeason == nil {
		return def
	}

	return *r.CurrentSeason
}

// EpisodeOr returns the current episode or def when the room has none.
func (r Room) EpisodeOr(def int) int {
	if r.CurrentEpisode == nil {
		return def
	}

	return *r.CurrentEpisode
}
