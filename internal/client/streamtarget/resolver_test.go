package streamtarget

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sharetube/watchparty/internal/client/localstore"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, *localstore.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := localstore.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewResolver(store, logger), store
}

func TestResolveMovie(t *testing.T) {
	r, _ := newTestResolver(t)

	assert.Equal(t, "https://vidsrc.cc/v2/embed/movie/550", r.Resolve(Target{MediaID: "550", MediaType: domain.MediaTypeMovie}))
	assert.Equal(t, "https://vidsrc.in/embed/movie?tmdb=550", r.Resolve(Target{MediaID: "550", MediaType: domain.MediaTypeMovie, ProviderIndex: 2}))
}

func TestResolveClampsProviderIndex(t *testing.T) {
	r, _ := newTestResolver(t)
	first := r.Resolve(Target{MediaID: "550", MediaType: domain.MediaTypeMovie, ProviderIndex: 0})

	for _, index := range []int{-1, 999, len(movieProviders)} {
		assert.Equal(t, first, r.Resolve(Target{MediaID: "550", MediaType: domain.MediaTypeMovie, ProviderIndex: index}))
	}
}

func TestResolveTV(t *testing.T) {
	r, _ := newTestResolver(t)

	assert.Equal(t,
		"https://vidsrc.xyz/embed/tv?tmdb=1399&season=2&episode=3",
		r.Resolve(Target{MediaID: "1399", MediaType: domain.MediaTypeTV, ProviderIndex: 1, Season: 2, Episode: 3}),
	)
	assert.Equal(t,
		"https://vidsrc.cc/v2/embed/tv/1399/1/1",
		r.Resolve(Target{MediaID: "1399", MediaType: domain.MediaTypeTV, Season: 0, Episode: -4}),
	)
}

func TestResolveTimestamp(t *testing.T) {
	r, _ := newTestResolver(t)

	assert.Equal(t,
		"https://vidlink.pro/movie/550?startAt=125",
		r.Resolve(Target{MediaID: "550", MediaType: domain.MediaTypeMovie, ProviderIndex: 5, Timestamp: domain.Float(125.9)}),
	)
	assert.Equal(t,
		"https://vidsrc.cc/v2/embed/movie/550",
		r.Resolve(Target{MediaID: "550", MediaType: domain.MediaTypeMovie, Timestamp: domain.Float(125)}),
		"providers without a start parameter ignore the timestamp",
	)
}

func TestPreferences(t *testing.T) {
	r, store := newTestResolver(t)

	_, ok := r.GetPreference("550")
	assert.False(t, ok)

	require.NoError(t, r.SavePreference("550", 3, domain.MediaTypeMovie))
	pref, ok := r.GetPreference("550")
	require.True(t, ok)
	assert.Equal(t, Preference{ServerIndex: 3, Type: domain.MediaTypeMovie}, pref)

	require.NoError(t, r.SaveLastWatched("550", domain.MediaTypeMovie, 4, 5))
	pref, _ = r.GetPreference("550")
	assert.Equal(t, Preference{ServerIndex: 3, Type: domain.MediaTypeMovie}, pref, "movies keep season and episode at 0")

	require.NoError(t, r.SaveLastWatched("1399", domain.MediaTypeTV, 2, 7))
	require.NoError(t, r.SavePreference("1399", 4, domain.MediaTypeTV))
	pref, _ = r.GetPreference("1399")
	assert.Equal(t, Preference{ServerIndex: 4, Type: domain.MediaTypeTV, Season: 2, Episode: 7}, pref)

	data := localstore.Get(store, StorageKey, streamData{})
	assert.Len(t, data.MovieServerMap, 2)
}

func TestSaveRoomState(t *testing.T) {
	r, _ := newTestResolver(t)

	require.NoError(t, r.SaveRoomState(domain.Room{
		MediaID:            "1399",
		MediaType:          domain.MediaTypeTV,
		CurrentServerIndex: 6,
		CurrentSeason:      domain.Int(3),
		CurrentEpisode:     domain.Int(9),
	}))

	pref, ok := r.GetPreference("1399")
	require.True(t, ok)
	assert.Equal(t, Preference{ServerIndex: 6, Type: domain.MediaTypeTV, Season: 3, Episode: 9}, pref)
}
