package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/metrics"
	"github.com/sharetube/watchparty/internal/repository/room"
)

// getRoomMember returns the member only if it belongs to roomId and is online.
func (s service) getRoomMember(ctx context.Context, roomId, memberId string) (room.Member, error) {
	member, err := s.roomRepo.GetMember(ctx, memberId)
	if err != nil {
		if errors.Is(err, room.ErrMemberNotFound) {
			return room.Member{}, ErrMemberNotFound
		}
		return room.Member{}, err
	}

	if member.RoomID != roomId || !member.IsOnline {
		return room.Member{}, ErrMemberNotFound
	}

	return member, nil
}

type LeaveRoomParams struct {
	RoomId   string
	MemberId string
}

// LeaveRoom removes the member. The room is closed when nobody online
// remains, otherwise a leaving host hands over to the earliest joined member.
func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (domain.LeaveRoomResponse, error) {
	if params.RoomId == "" || params.MemberId == "" {
		return domain.LeaveRoomResponse{}, fmt.Errorf("%w: missing required fields: room id, member id", domain.ErrValidation)
	}

	member, err := s.getRoomMember(ctx, params.RoomId, params.MemberId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get member", "error", err)
		return domain.LeaveRoomResponse{}, err
	}

	if err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		MemberID: params.MemberId,
		RoomID:   params.RoomId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to remove member", "error", err)
		if errors.Is(err, room.ErrMemberNotFound) {
			return domain.LeaveRoomResponse{}, ErrMemberNotFound
		}
		return domain.LeaveRoomResponse{}, fmt.Errorf("%w: failed to leave room", domain.ErrPersistence)
	}
	metrics.MembersLeftTotal.Inc()

	left := toDomainMember(params.MemberId, member)
	left.IsOnline = false
	s.publishChange(ctx, params.RoomId, domain.TableMembers, domain.ChangeDelete, left)

	remaining, err := s.getMembers(ctx, params.RoomId)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to check remaining members", "error", err)
		return domain.LeaveRoomResponse{Message: "Successfully left room"}, nil
	}

	if len(remaining) == 0 {
		if err := s.roomRepo.DeactivateRoom(ctx, params.RoomId); err != nil {
			s.logger.WarnContext(ctx, "failed to deactivate room", "error", err)
			return domain.LeaveRoomResponse{Message: "Successfully left room"}, nil
		}
		metrics.RoomsClosedTotal.Inc()
		s.publishRoom(ctx, params.RoomId)

		return domain.LeaveRoomResponse{
			Message:    "Left room and room was closed",
			RoomClosed: true,
		}, nil
	}

	if member.IsHost {
		newHost := remaining[0]
		if err := s.roomRepo.UpdateMemberIsHost(ctx, newHost.ID, true); err != nil {
			s.logger.WarnContext(ctx, "failed to transfer host", "member_id", newHost.ID, "error", err)
		} else {
			newHost.IsHost = true
			s.publishChange(ctx, params.RoomId, domain.TableMembers, domain.ChangeUpdate, newHost)
		}
	}

	return domain.LeaveRoomResponse{Message: "Successfully left room"}, nil
}

func (s service) ListMembers(ctx context.Context, roomId string) ([]domain.Member, error) {
	if _, err := s.getActiveRoom(ctx, roomId); err != nil {
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return nil, err
	}

	members, err := s.getMembers(ctx, roomId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get members", "error", err)
		return nil, fmt.Errorf("%w: failed to fetch room members", domain.ErrPersistence)
	}

	return members, nil
}

// TouchMember refreshes the member's last seen time.
func (s service) TouchMember(ctx context.Context, roomId, memberId string) error {
	if _, err := s.getRoomMember(ctx, roomId, memberId); err != nil {
		return err
	}

	if err := s.roomRepo.UpdateMemberLastSeen(ctx, memberId, s.now().UnixMilli()); err != nil {
		s.logger.InfoContext(ctx, "failed to update last seen", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	return nil
}
