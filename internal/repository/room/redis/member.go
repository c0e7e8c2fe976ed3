package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func (r repo) getMemberKey(memberId string) string {
	return "member:" + memberId
}

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":members"
}

// getMemberNamesKey maps member names of the room to the member holding them.
func (r repo) getMemberNamesKey(roomId string) string {
	return "room:" + roomId + ":member-names"
}

// SetMember adds the member to the room. The name is claimed atomically so
// concurrent joins with one name cannot both succeed.
func (r repo) SetMember(ctx context.Context, params *room.SetMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	claimed, err := r.claimMemberName(ctx, params.RoomID, params.MemberName, params.MemberID)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if !claimed {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNameTaken)
		return room.ErrMemberNameTaken
	}
	r.rc.Expire(ctx, r.getMemberNamesKey(params.RoomID), r.expireDuration)

	pipe := r.rc.TxPipeline()

	memberKey := r.getMemberKey(params.MemberID)
	r.hSetStruct(ctx, pipe, memberKey, room.Member{
		RoomID:     params.RoomID,
		MemberName: params.MemberName,
		IsHost:     params.IsHost,
		IsOnline:   true,
		JoinedAt:   params.JoinedAt,
		LastSeen:   params.JoinedAt,
	})
	pipe.Expire(ctx, memberKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		r.releaseMemberName(ctx, params.RoomID, params.MemberName, params.MemberID)
		return err
	}

	memberListKey := r.getMemberListKey(params.RoomID)
	if err := r.addWithIncrement(ctx, memberListKey, params.MemberID); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		r.rc.Del(ctx, memberKey)
		r.releaseMemberName(ctx, params.RoomID, params.MemberName, params.MemberID)
		return err
	}
	r.rc.Expire(ctx, memberListKey, r.expireDuration)

	return nil
}

func (r repo) GetMember(ctx context.Context, memberId string) (room.Member, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"member_id": memberId,
	})
	var member room.Member
	if err := r.rc.HGetAll(ctx, r.getMemberKey(memberId)).Scan(&member); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Member{}, err
	}

	if member.MemberName == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.Member{}, room.ErrMemberNotFound
	}

	return member, nil
}

// GetMemberIds returns the room's member ids, oldest first.
func (r repo) GetMemberIds(ctx context.Context, roomId string) ([]string, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	memberIds, err := r.rc.ZRange(ctx, r.getMemberListKey(roomId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return memberIds, nil
}

func (r repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	memberKey := r.getMemberKey(params.MemberID)
	name, err := r.rc.HGet(ctx, memberKey, "member_name").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	res, err := r.rc.Del(ctx, memberKey).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if name != "" {
		if err := r.releaseMemberName(ctx, params.RoomID, name, params.MemberID); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return err
		}
	}

	if err := r.rc.ZRem(ctx, r.getMemberListKey(params.RoomID), params.MemberID).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if res == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.ErrMemberNotFound
	}

	return nil
}

func (r repo) updateMemberField(ctx context.Context, memberId, field string, value any) error {
	key := r.getMemberKey(memberId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		return err
	}

	if cmd.Val() == 0 {
		return room.ErrMemberNotFound
	}

	return r.rc.HSet(ctx, key, field, value).Err()
}

func (r repo) UpdateMemberIsHost(ctx context.Context, memberId string, isHost bool) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"member_id": memberId,
		"is_host":   isHost,
	})
	if err := r.updateMemberField(ctx, memberId, "is_host", isHost); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) UpdateMemberLastSeen(ctx context.Context, memberId string, lastSeen int64) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"member_id": memberId,
		"last_seen": lastSeen,
	})
	if err := r.updateMemberField(ctx, memberId, "last_seen", lastSeen); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	r.rc.Expire(ctx, r.getMemberKey(memberId), r.expireDuration)

	return nil
}
