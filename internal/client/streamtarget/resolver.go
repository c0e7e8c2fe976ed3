// Package streamtarget maps media and provider choices to embed URLs and
// remembers the last provider and episode picked per media id.
package streamtarget

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/sharetube/watchparty/internal/client/localstore"
	"github.com/sharetube/watchparty/internal/domain"
)

const StorageKey = "streamData"

type Preference struct {
	ServerIndex int              `json:"serverIndex"`
	Type        domain.MediaType `json:"type"`
	Season      int              `json:"season"`
	Episode     int              `json:"episode"`
}

type streamData struct {
	MovieServerMap map[string]Preference `json:"movieServerMap"`
}

// Target is what Resolve needs to build an URL.
type Target struct {
	MediaID       string
	MediaType     domain.MediaType
	ProviderIndex int
	Season        int
	Episode       int
	// Timestamp is the start offset in seconds, nil to start from the beginning.
	Timestamp *float64
}

type Resolver struct {
	store  *localstore.Store
	logger *slog.Logger
	mu     sync.Mutex
}

func NewResolver(store *localstore.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

func (r *Resolver) clampProvider(mediaType domain.MediaType, index int) int {
	if index < 0 || index >= len(Providers(mediaType)) {
		r.logger.Warn("invalid provider index, using default", "provider_index", index, "media_type", mediaType)
		return 0
	}

	return index
}

// Resolve builds the embed URL for target. Invalid indices are corrected,
// never rejected.
func (r *Resolver) Resolve(target Target) string {
	providers := Providers(target.MediaType)
	provider := providers[r.clampProvider(target.MediaType, target.ProviderIndex)]

	var url string
	if target.MediaType == domain.MediaTypeTV {
		url = strings.NewReplacer(
			"{externalId}", target.MediaID,
			"{season}", strconv.Itoa(max(1, target.Season)),
			"{episode}", strconv.Itoa(max(1, target.Episode)),
		).Replace(provider.URLTemplate)
	} else {
		url = strings.ReplaceAll(provider.URLTemplate, "{tmdbId}", target.MediaID)
	}

	if target.Timestamp != nil && provider.TimestampParam != "" && *target.Timestamp > 0 {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url = fmt.Sprintf("%s%s%s=%d", url, sep, provider.TimestampParam, int64(math.Floor(*target.Timestamp)))
	}

	return url
}

func (r *Resolver) load() streamData {
	data := localstore.Get(r.store, StorageKey, streamData{})
	if data.MovieServerMap == nil {
		data.MovieServerMap = make(map[string]Preference)
	}

	return data
}

func (r *Resolver) update(mediaID string, fn func(pref Preference, ok bool) Preference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := r.load()
	pref, ok := data.MovieServerMap[mediaID]
	data.MovieServerMap[mediaID] = fn(pref, ok)

	return r.store.Set(StorageKey, data)
}

// SavePreference remembers the provider picked for mediaID, keeping any
// saved episode.
func (r *Resolver) SavePreference(mediaID string, providerIndex int, mediaType domain.MediaType) error {
	providerIndex = r.clampProvider(mediaType, providerIndex)

	return r.update(mediaID, func(pref Preference, ok bool) Preference {
		season, episode := 0, 0
		if mediaType == domain.MediaTypeTV {
			season, episode = 1, 1
			if ok {
				season, episode = max(1, pref.Season), max(1, pref.Episode)
			}
		}

		return Preference{
			ServerIndex: providerIndex,
			Type:        mediaType,
			Season:      season,
			Episode:     episode,
		}
	})
}

// SaveLastWatched remembers the episode watched for mediaID. Movies always
// store season and episode 0.
func (r *Resolver) SaveLastWatched(mediaID string, mediaType domain.MediaType, season, episode int) error {
	if mediaType == domain.MediaTypeTV {
		if season < 1 || episode < 1 {
			r.logger.Warn("invalid season or episode, clamping", "season", season, "episode", episode)
		}
		season, episode = max(1, season), max(1, episode)
	} else {
		season, episode = 0, 0
	}

	return r.update(mediaID, func(pref Preference, _ bool) Preference {
		return Preference{
			ServerIndex: pref.ServerIndex,
			Type:        mediaType,
			Season:      season,
			Episode:     episode,
		}
	})
}

func (r *Resolver) GetPreference(mediaID string) (Preference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pref, ok := r.load().MovieServerMap[mediaID]
	return pref, ok
}

// SaveRoomState stores the provider and episode of room as the preference
// for its media.
func (r *Resolver) SaveRoomState(room domain.Room) error {
	if err := r.SavePreference(room.MediaID, room.CurrentServerIndex, room.MediaType); err != nil {
		return err
	}

	if room.MediaType == domain.MediaTypeTV {
		return r.SaveLastWatched(room.MediaID, room.MediaType, room.SeasonOr(1), room.EpisodeOr(1))
	}

	return nil
}

// RoomURL resolves the URL for the room's current state starting at timestamp.
func (r *Resolver) RoomURL(room domain.Room, timestamp *float64) string {
	return r.Resolve(Target{
		MediaID:       room.MediaID,
		MediaType:     room.MediaType,
		ProviderIndex: room.CurrentServerIndex,
		Season:        room.SeasonOr(1),
		Episode:       room.EpisodeOr(1),
		Timestamp:     timestamp,
	})
}
