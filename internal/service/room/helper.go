package room

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms).UTC()
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}

	return &v
}

func toDomainRoom(roomId string, rm room.Room) domain.Room {
	return domain.Room{
		ID:                 roomId,
		RoomCode:           rm.RoomCode,
		HostName:           rm.HostName,
		MediaID:            rm.MediaID,
		MediaType:          domain.MediaType(rm.MediaType),
		CurrentServerIndex: rm.CurrentServerIndex,
		CurrentSeason:      optionalInt(rm.CurrentSeason),
		CurrentEpisode:     optionalInt(rm.CurrentEpisode),
		CurrentTime:        rm.CurrentTime,
		IsPlaying:          rm.IsPlaying,
		CreatedAt:          fromMillis(rm.CreatedAt),
		LastActivity:       fromMillis(rm.LastActivity),
		IsActive:           rm.IsActive,
	}
}

func toDomainMember(memberId string, member room.Member) domain.Member {
	return domain.Member{
		ID:         memberId,
		RoomID:     member.RoomID,
		MemberName: member.MemberName,
		IsHost:     member.IsHost,
		IsOnline:   member.IsOnline,
		JoinedAt:   fromMillis(member.JoinedAt),
		LastSeen:   fromMillis(member.LastSeen),
	}
}

// getActiveRoom maps a missing or inactive room to ErrRoomNotFound.
func (s service) getActiveRoom(ctx context.Context, roomId string) (room.Room, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return room.Room{}, ErrRoomNotFound
		}
		return room.Room{}, err
	}

	if !rm.IsActive {
		return room.Room{}, ErrRoomNotFound
	}

	return rm, nil
}

func (s service) getActiveRoomIdByCode(ctx context.Context, roomCode string) (string, room.Room, error) {
	roomId, err := s.roomRepo.GetRoomIdByCode(ctx, normalizeRoomCode(roomCode))
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return "", room.Room{}, ErrRoomNotFound
		}
		return "", room.Room{}, err
	}

	rm, err := s.getActiveRoom(ctx, roomId)
	if err != nil {
		return "", room.Room{}, err
	}

	return roomId, rm, nil
}

// getMembers returns the online members of the room ordered by join time.
// Members whose keys expired in between are skipped.
func (s service) getMembers(ctx context.Context, roomId string) ([]domain.Member, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, err
	}

	members := make([]domain.Member, 0, len(memberIds))
	for _, memberId := range memberIds {
		member, err := s.roomRepo.GetMember(ctx, memberId)
		if err != nil {
			if errors.Is(err, room.ErrMemberNotFound) {
				continue
			}
			return nil, err
		}

		if !member.IsOnline {
			continue
		}

		members = append(members, toDomainMember(memberId, member))
	}

	slices.SortStableFunc(members, func(a, b domain.Member) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})

	return members, nil
}

// publishChange logs publishing errors instead of returning them.
func (s service) publishChange(ctx context.Context, roomId string, table domain.Table, changeType domain.ChangeType, row any) {
	change, err := domain.NewChange(table, changeType, row)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode change", "table", table, "error", err)
		return
	}

	if err := s.roomRepo.PublishChange(ctx, roomId, change); err != nil {
		s.logger.WarnContext(ctx, "failed to publish change", "table", table, "error", err)
	}
}

// publishRoom re-reads the room so subscribers always receive the full row.
func (s service) publishRoom(ctx context.Context, roomId string) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read room for change", "error", err)
		return
	}

	s.publishChange(ctx, roomId, domain.TableRooms, domain.ChangeUpdate, toDomainRoom(roomId, rm))
}
