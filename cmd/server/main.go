package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchparty/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	roomTTL = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_TTL",
		flagKey:      "room-ttl",
		defaultValue: 24 * time.Hour,
	}
	codeAttempts = configVar[int]{
		envKey:       "SERVER_CODE_ATTEMPTS",
		flagKey:      "code-attempts",
		defaultValue: 10,
	}
	eventsLimit = configVar[int]{
		envKey:       "SERVER_EVENTS_LIMIT",
		flagKey:      "events-limit",
		defaultValue: 1000,
	}
	rateLimit = configVar[int]{
		envKey:       "SERVER_RATE_LIMIT",
		flagKey:      "rate-limit",
		defaultValue: 300,
	}
	cors = configVar[bool]{
		envKey:       "SERVER_CORS",
		flagKey:      "cors",
		defaultValue: true,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Duration(roomTTL.flagKey, roomTTL.defaultValue, "Lifetime of idle room keys")
	pflag.Int(codeAttempts.flagKey, codeAttempts.defaultValue, "Room code generation attempts before giving up")
	pflag.Int(eventsLimit.flagKey, eventsLimit.defaultValue, "Sync events retained per room")
	pflag.Int(rateLimit.flagKey, rateLimit.defaultValue, "API requests per minute and IP, 0 disables")
	pflag.Bool(cors.flagKey, cors.defaultValue, "Allow cross origin requests")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(roomTTL.flagKey, roomTTL.envKey)
	viper.BindEnv(codeAttempts.flagKey, codeAttempts.envKey)
	viper.BindEnv(eventsLimit.flagKey, eventsLimit.envKey)
	viper.BindEnv(rateLimit.flagKey, rateLimit.envKey)
	viper.BindEnv(cors.flagKey, cors.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(roomTTL.flagKey, roomTTL.defaultValue)
	viper.SetDefault(codeAttempts.flagKey, codeAttempts.defaultValue)
	viper.SetDefault(eventsLimit.flagKey, eventsLimit.defaultValue)
	viper.SetDefault(rateLimit.flagKey, rateLimit.defaultValue)
	viper.SetDefault(cors.flagKey, cors.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Host:          viper.GetString(host.flagKey),
		Port:          viper.GetInt(port.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		RoomTTL:       viper.GetDuration(roomTTL.flagKey),
		CodeAttempts:  viper.GetInt(codeAttempts.flagKey),
		EventsLimit:   viper.GetInt(eventsLimit.flagKey),
		RateLimit:     viper.GetInt(rateLimit.flagKey),
		CORS:          viper.GetBool(cors.flagKey),
		RedisPort:     viper.GetInt(redisPort.flagKey),
		RedisHost:     viper.GetString(redisHost.flagKey),
		RedisPassword: viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
