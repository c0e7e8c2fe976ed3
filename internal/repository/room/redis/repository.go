package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc                *redis.Client
	logger            *slog.Logger
	maxScoreScript    *redis.Script
	claimNameScript   *redis.Script
	releaseNameScript *redis.Script
	expireDuration    time.Duration
	eventsLimit       int64
}

func NewRepo(rc *redis.Client, logger *slog.Logger, expireDuration time.Duration, eventsLimit int64) *repo {
	return &repo{
		rc:     rc,
		logger: logger,
		maxScoreScript: redis.NewScript(`
			local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			return nextScore
		`),
		// a name held by a member whose hash is gone is stale and may be
		// taken over
		claimNameScript: redis.NewScript(`
			local holder = redis.call('HGET', KEYS[1], ARGV[1])
			if holder and holder ~= ARGV[2] and redis.call('EXISTS', ARGV[3] .. holder) == 1 then
				return 0
			end
			redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
			return 1
		`),
		releaseNameScript: redis.NewScript(`
			if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[2] then
				return redis.call('HDEL', KEYS[1], ARGV[1])
			end
			return 0
		`),
		expireDuration: expireDuration,
		eventsLimit:    eventsLimit,
	}
}
