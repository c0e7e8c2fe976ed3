package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/room"
	omitnilpointers "github.com/sharetube/watchparty/pkg/omit-nil-pointers"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) getRoomCodeKey(roomCode string) string {
	return "room-code:" + roomCode
}

// ClaimRoomCode reserves roomCode for roomId. It reports false when an
// active room already holds the code.
func (r repo) ClaimRoomCode(ctx context.Context, roomCode, roomId string) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_code": roomCode,
		"room_id":   roomId,
	})
	ok, err := r.rc.SetNX(ctx, r.getRoomCodeKey(roomCode), roomId, r.expireDuration).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	return ok, nil
}

func (r repo) ReleaseRoomCode(ctx context.Context, roomCode string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_code": roomCode,
	})
	if err := r.rc.Del(ctx, r.getRoomCodeKey(roomCode)).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetRoomIdByCode(ctx context.Context, roomCode string) (string, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_code": roomCode,
	})
	roomId, err := r.rc.Get(ctx, r.getRoomCodeKey(roomCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = room.ErrRoomNotFound
		}
		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", err
	}

	return roomId, nil
}

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	roomKey := r.getRoomKey(params.RoomID)
	r.hSetStruct(ctx, pipe, roomKey, room.Room{
		RoomCode:           params.RoomCode,
		HostName:           params.HostName,
		MediaID:            params.MediaID,
		MediaType:          params.MediaType,
		CurrentServerIndex: params.CurrentServerIndex,
		CurrentSeason:      params.CurrentSeason,
		CurrentEpisode:     params.CurrentEpisode,
		CurrentTime:        0,
		IsPlaying:          false,
		CreatedAt:          params.CreatedAt,
		LastActivity:       params.CreatedAt,
		IsActive:           true,
	})
	pipe.Expire(ctx, roomKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	var rm room.Room
	if err := r.rc.HGetAll(ctx, r.getRoomKey(roomId)).Scan(&rm); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	if rm.RoomCode == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	return rm, nil
}

// UpdateRoom writes only the non-nil fields of params.
func (r repo) UpdateRoom(ctx context.Context, params *room.UpdateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomID)
	exists, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if exists == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	fields := omitnilpointers.OmitNilPointers(map[string]any{
		"current_server_index": params.CurrentServerIndex,
		"current_season":       params.CurrentSeason,
		"current_episode":      params.CurrentEpisode,
		"current_time":         params.CurrentTime,
		"is_playing":           params.IsPlaying,
		"last_activity":        params.LastActivity,
	})

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, roomKey, fields)
	pipe.Expire(ctx, roomKey, r.expireDuration)
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// DeactivateRoom marks the room inactive and frees its code, so it can no
// longer be found by code lookup.
func (r repo) DeactivateRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	rm, err := r.GetRoom(ctx, roomId)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, r.getRoomKey(roomId), "is_active", false)
	pipe.Del(ctx, r.getRoomCodeKey(rm.RoomCode))
	pipe.Del(ctx, r.getMemberNamesKey(roomId))
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// RemoveRoom deletes every key of the room. Used to roll back a failed create.
func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	rm, err := r.GetRoom(ctx, roomId)
	if err != nil && !errors.Is(err, room.ErrRoomNotFound) {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	keys := []string{
		r.getRoomKey(roomId),
		r.getMemberListKey(roomId),
		r.getMemberNamesKey(roomId),
		r.getEventsKey(roomId),
	}
	if rm.RoomCode != "" {
		keys = append(keys, r.getRoomCodeKey(rm.RoomCode))
	}

	if err := r.rc.Del(ctx, keys...).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
