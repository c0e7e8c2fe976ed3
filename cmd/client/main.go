package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchparty/internal/clientapp"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	serverURL = configVar[string]{
		envKey:       "CLIENT_SERVER_URL",
		flagKey:      "server-url",
		defaultValue: "http://localhost:80",
	}
	stateDir = configVar[string]{
		envKey:       "CLIENT_STATE_DIR",
		flagKey:      "state-dir",
		defaultValue: "",
	}
	logLevel = configVar[string]{
		envKey:       "CLIENT_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "WARN",
	}
	memberName = configVar[string]{
		envKey:       "CLIENT_MEMBER_NAME",
		flagKey:      "name",
		defaultValue: "",
	}
	roomCode = configVar[string]{
		envKey:       "CLIENT_ROOM",
		flagKey:      "room",
		defaultValue: "",
	}
	create = configVar[bool]{
		envKey:       "CLIENT_CREATE",
		flagKey:      "create",
		defaultValue: false,
	}
	mediaID = configVar[string]{
		envKey:       "CLIENT_MEDIA_ID",
		flagKey:      "media-id",
		defaultValue: "",
	}
	mediaType = configVar[string]{
		envKey:       "CLIENT_MEDIA_TYPE",
		flagKey:      "media-type",
		defaultValue: "movie",
	}
	providerIndex = configVar[int]{
		envKey:       "CLIENT_PROVIDER",
		flagKey:      "provider",
		defaultValue: 0,
	}
	season = configVar[int]{
		envKey:       "CLIENT_SEASON",
		flagKey:      "season",
		defaultValue: 1,
	}
	episode = configVar[int]{
		envKey:       "CLIENT_EPISODE",
		flagKey:      "episode",
		defaultValue: 1,
	}
	shareBase = configVar[string]{
		envKey:       "CLIENT_SHARE_BASE",
		flagKey:      "share-base",
		defaultValue: "",
	}
	sendThrottle = configVar[time.Duration]{
		envKey:       "CLIENT_SEND_THROTTLE",
		flagKey:      "send-throttle",
		defaultValue: 500 * time.Millisecond,
	}
)

func loadClientConfig() *clientapp.ClientConfig {
	pflag.String(serverURL.flagKey, serverURL.defaultValue, "Room registry base url")
	pflag.String(stateDir.flagKey, stateDir.defaultValue, "Directory keeping the session across restarts, empty keeps it in memory")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(memberName.flagKey, memberName.defaultValue, "Display name")
	pflag.String(roomCode.flagKey, roomCode.defaultValue, "Room code or share link to join")
	pflag.Bool(create.flagKey, create.defaultValue, "Create a room instead of joining one")
	pflag.String(mediaID.flagKey, mediaID.defaultValue, "Media id of the created room")
	pflag.String(mediaType.flagKey, mediaType.defaultValue, "Media type of the created room, movie or tv")
	pflag.Int(providerIndex.flagKey, providerIndex.defaultValue, "Stream provider index of the created room")
	pflag.Int(season.flagKey, season.defaultValue, "Season of the created room")
	pflag.Int(episode.flagKey, episode.defaultValue, "Episode of the created room")
	pflag.String(shareBase.flagKey, shareBase.defaultValue, "Base url of share links")
	pflag.Duration(sendThrottle.flagKey, sendThrottle.defaultValue, "Minimum gap between sent playback events, 0 disables")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(serverURL.flagKey, serverURL.envKey)
	viper.BindEnv(stateDir.flagKey, stateDir.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(memberName.flagKey, memberName.envKey)
	viper.BindEnv(roomCode.flagKey, roomCode.envKey)
	viper.BindEnv(create.flagKey, create.envKey)
	viper.BindEnv(mediaID.flagKey, mediaID.envKey)
	viper.BindEnv(mediaType.flagKey, mediaType.envKey)
	viper.BindEnv(providerIndex.flagKey, providerIndex.envKey)
	viper.BindEnv(season.flagKey, season.envKey)
	viper.BindEnv(episode.flagKey, episode.envKey)
	viper.BindEnv(shareBase.flagKey, shareBase.envKey)
	viper.BindEnv(sendThrottle.flagKey, sendThrottle.envKey)

	viper.SetDefault(serverURL.flagKey, serverURL.defaultValue)
	viper.SetDefault(stateDir.flagKey, stateDir.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(memberName.flagKey, memberName.defaultValue)
	viper.SetDefault(roomCode.flagKey, roomCode.defaultValue)
	viper.SetDefault(create.flagKey, create.defaultValue)
	viper.SetDefault(mediaID.flagKey, mediaID.defaultValue)
	viper.SetDefault(mediaType.flagKey, mediaType.defaultValue)
	viper.SetDefault(providerIndex.flagKey, providerIndex.defaultValue)
	viper.SetDefault(season.flagKey, season.defaultValue)
	viper.SetDefault(episode.flagKey, episode.defaultValue)
	viper.SetDefault(shareBase.flagKey, shareBase.defaultValue)
	viper.SetDefault(sendThrottle.flagKey, sendThrottle.defaultValue)

	return &clientapp.ClientConfig{
		ServerURL:     viper.GetString(serverURL.flagKey),
		StateDir:      viper.GetString(stateDir.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		MemberName:    viper.GetString(memberName.flagKey),
		RoomCode:      viper.GetString(roomCode.flagKey),
		Create:        viper.GetBool(create.flagKey),
		MediaID:       viper.GetString(mediaID.flagKey),
		MediaType:     viper.GetString(mediaType.flagKey),
		ProviderIndex: viper.GetInt(providerIndex.flagKey),
		Season:        viper.GetInt(season.flagKey),
		Episode:       viper.GetInt(episode.flagKey),
		ShareBase:     viper.GetString(shareBase.flagKey),
		SendThrottle:  viper.GetDuration(sendThrottle.flagKey),
	}
}

func main() {
	ctx := context.Background()

	clientConfig := loadClientConfig()

	jsonConfig, _ := json.MarshalIndent(clientConfig, "", "  ")
	fmt.Fprintf(os.Stderr, "starting client with config: %s\n", jsonConfig)

	if err := clientapp.Run(ctx, clientConfig, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
