package streamtarget

import "github.com/sharetube/watchparty/internal/domain"

// Provider is an embed host. Movie templates use {tmdbId}, tv templates
// use {externalId}, {season} and {episode}.
type Provider struct {
	Name        string
	URLTemplate string
	// TimestampParam is the query parameter that sets the start offset in
	// seconds, empty when the provider has none.
	TimestampParam string
}

var movieProviders = []Provider{
	{Name: "VidSrc CC", URLTemplate: "https://vidsrc.cc/v2/embed/movie/{tmdbId}"},
	{Name: "VidSrc XYZ", URLTemplate: "https://vidsrc.xyz/embed/movie?tmdb={tmdbId}"},
	{Name: "VidSrc In", URLTemplate: "https://vidsrc.in/embed/movie?tmdb={tmdbId}"},
	{Name: "MultiEmbed", URLTemplate: "https://multiembed.mov/?video_id={tmdbId}&tmdb=1"},
	{Name: "EmbedSU", URLTemplate: "https://embed.su/embed/movie/{tmdbId}"},
	{Name: "VidLink", URLTemplate: "https://vidlink.pro/movie/{tmdbId}", TimestampParam: "startAt"},
	{Name: "AutoEmbed", URLTemplate: "https://player.autoembed.cc/embed/movie/{tmdbId}"},
	{Name: "VidFast", URLTemplate: "https://vidfast.pro/movie/{tmdbId}", TimestampParam: "startAt"},
	{Name: "111Movies", URLTemplate: "https://111movies.com/movie/{tmdbId}"},
	{Name: "Vidora", URLTemplate: "https://vidora.su/movie/{tmdbId}?parameters"},
	{Name: "Smashy", URLTemplate: "https://player.smashy.stream/movie/{tmdbId}?autoplay=true"},
}

var tvProviders = []Provider{
	{Name: "VidSrc CC", URLTemplate: "https://vidsrc.cc/v2/embed/tv/{externalId}/{season}/{episode}"},
	{Name: "VidSrc XYZ", URLTemplate: "https://vidsrc.xyz/embed/tv?tmdb={externalId}&season={season}&episode={episode}"},
	{Name: "VidSrc In", URLTemplate: "https://vidsrc.in/embed/tv?tmdb={externalId}&season={season}&episode={episode}"},
	{Name: "MultiEmbed", URLTemplate: "https://multiembed.mov/?video_id={externalId}&tmdb=1&s={season}&e={episode}"},
	{Name: "Embed.su", URLTemplate: "https://embed.su/embed/tv/{externalId}/{season}/{episode}"},
	{Name: "Vidlink", URLTemplate: "https://vidlink.pro/tv/{externalId}/{season}/{episode}", TimestampParam: "startAt"},
	{Name: "AutoEmbed", URLTemplate: "https://player.autoembed.cc/embed/tv/{externalId}/{season}/{episode}"},
	{Name: "VidFast", URLTemplate: "https://vidfast.pro/tv/{externalId}/{season}/{episode}", TimestampParam: "startAt"},
	{Name: "111Movies", URLTemplate: "https://111movies.com/tv/{externalId}/{season}/{episode}"},
	{Name: "Vidora", URLTemplate: "https://vidora.su/tv/{externalId}/{season}/{episode}?autoplay=true"},
	{Name: "Smashy", URLTemplate: "https://player.smashy.stream/tv/{externalId}?s={season}&e={episode}"},
}

// Providers returns the ordered provider list for mediaType. Unknown types
// get the movie list.
func Providers(mediaType domain.MediaType) []Provider {
	if mediaType == domain.MediaTypeTV {
		return tvProviders
	}

	return movieProviders
}
