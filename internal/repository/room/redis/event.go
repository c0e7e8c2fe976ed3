package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func (r repo) getEventsKey(roomId string) string {
	return "room:" + roomId + ":events"
}

// AddEvent appends the event to the room stream. Stream ids preserve
// insertion order; old entries are trimmed to eventsLimit.
func (r repo) AddEvent(ctx context.Context, params *room.AddEventParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	eventsKey := r.getEventsKey(params.RoomID)
	if err := r.rc.XAdd(ctx, &redis.XAddArgs{
		Stream: eventsKey,
		MaxLen: r.eventsLimit,
		Approx: true,
		Values: map[string]any{
			"id":         params.EventID,
			"member_id":  params.MemberID,
			"event_type": params.EventType,
			"event_data": params.EventData,
			"created_at": params.CreatedAt,
		},
	}).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}
	r.rc.Expire(ctx, eventsKey, r.expireDuration)

	return nil
}

func (r repo) GetEventsCount(ctx context.Context, roomId string) (int64, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	count, err := r.rc.XLen(ctx, r.getEventsKey(roomId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return 0, err
	}

	return count, nil
}
