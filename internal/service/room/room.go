package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/metrics"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func normalizeRoomCode(roomCode string) string {
	return strings.ToUpper(strings.TrimSpace(roomCode))
}

type CreateRoomParams struct {
	HostName    string
	MediaID     string
	MediaType   domain.MediaType
	ServerIndex int
	Season      *int
	Episode     *int
}

func (p *CreateRoomParams) normalized() *CreateRoomParams {
	n := *p
	n.HostName = strings.TrimSpace(p.HostName)
	n.MediaID = strings.TrimSpace(p.MediaID)
	return &n
}

func (p CreateRoomParams) validate() error {
	if p.HostName == "" || p.MediaID == "" {
		return fmt.Errorf("%w: missing required fields: host name, media id", domain.ErrValidation)
	}

	if !p.MediaType.Valid() {
		return fmt.Errorf("%w: invalid media type, must be \"movie\" or \"tv\"", domain.ErrValidation)
	}

	if p.ServerIndex < 0 {
		return fmt.Errorf("%w: server index must not be negative", domain.ErrValidation)
	}

	if p.MediaType == domain.MediaTypeTV && (p.Season == nil || p.Episode == nil) {
		return fmt.Errorf("%w: season and episode are required for tv shows", domain.ErrValidation)
	}

	return nil
}

// claimRoomCode generates codes until one is free among active rooms.
func (s service) claimRoomCode(ctx context.Context, roomId string) (string, error) {
	for i := 0; i < s.codeAttempts; i++ {
		roomCode := s.generator.GenerateRandomString(roomCodeLength)
		ok, err := s.roomRepo.ClaimRoomCode(ctx, roomCode, roomId)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}

		if ok {
			return roomCode, nil
		}

		s.logger.DebugContext(ctx, "room code collision", "room_code", roomCode)
	}

	return "", ErrRoomCodeExhausted
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (domain.CreateRoomResponse, error) {
	params = params.normalized()
	if err := params.validate(); err != nil {
		s.logger.InfoContext(ctx, "invalid create room params", "error", err)
		return domain.CreateRoomResponse{}, err
	}

	roomId := uuid.NewString()
	roomCode, err := s.claimRoomCode(ctx, roomId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to claim room code", "error", err)
		return domain.CreateRoomResponse{}, err
	}

	season, episode := 0, 0
	if params.MediaType == domain.MediaTypeTV {
		season, episode = max(*params.Season, 1), max(*params.Episode, 1)
	}

	now := s.now().UnixMilli()
	if err := s.roomRepo.SetRoom(ctx, &room.SetRoomParams{
		RoomID:             roomId,
		RoomCode:           roomCode,
		HostName:           params.HostName,
		MediaID:            params.MediaID,
		MediaType:          string(params.MediaType),
		CurrentServerIndex: params.ServerIndex,
		CurrentSeason:      season,
		CurrentEpisode:     episode,
		CreatedAt:          now,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to create room", "error", err)
		if err := s.roomRepo.ReleaseRoomCode(ctx, roomCode); err != nil {
			s.logger.WarnContext(ctx, "failed to release room code", "error", err)
		}
		return domain.CreateRoomResponse{}, fmt.Errorf("%w: failed to create room", domain.ErrPersistence)
	}

	memberId := uuid.NewString()
	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		MemberID:   memberId,
		RoomID:     roomId,
		MemberName: params.HostName,
		IsHost:     true,
		JoinedAt:   now,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to add host to room", "error", err)
		if err := s.roomRepo.RemoveRoom(ctx, roomId); err != nil {
			s.logger.WarnContext(ctx, "failed to roll back room", "room_id", roomId, "error", err)
		}
		return domain.CreateRoomResponse{}, fmt.Errorf("%w: failed to add host to room", domain.ErrPersistence)
	}

	metrics.RoomsCreatedTotal.Inc()
	metrics.MembersJoinedTotal.Inc()

	if member, err := s.roomRepo.GetMember(ctx, memberId); err == nil {
		s.publishChange(ctx, roomId, domain.TableMembers, domain.ChangeInsert, toDomainMember(memberId, member))
	}

	return domain.CreateRoomResponse{
		RoomID:       roomId,
		RoomCode:     roomCode,
		HostMemberID: memberId,
	}, nil
}

type JoinRoomParams struct {
	RoomCode   string
	MemberName string
}

func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (domain.JoinRoomResponse, error) {
	memberName := strings.TrimSpace(params.MemberName)
	if strings.TrimSpace(params.RoomCode) == "" || memberName == "" {
		return domain.JoinRoomResponse{}, fmt.Errorf("%w: missing required fields: room code, member name", domain.ErrValidation)
	}

	roomId, _, err := s.getActiveRoomIdByCode(ctx, params.RoomCode)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to find room", "error", err)
		return domain.JoinRoomResponse{}, err
	}

	memberId := uuid.NewString()
	now := s.now().UnixMilli()
	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		MemberID:   memberId,
		RoomID:     roomId,
		MemberName: memberName,
		IsHost:     false,
		JoinedAt:   now,
	}); err != nil {
		if errors.Is(err, room.ErrMemberNameTaken) {
			s.logger.InfoContext(ctx, "member name taken", "member_name", memberName)
			return domain.JoinRoomResponse{}, ErrMemberNameTaken
		}
		s.logger.InfoContext(ctx, "failed to add member to room", "error", err)
		return domain.JoinRoomResponse{}, fmt.Errorf("%w: failed to join room", domain.ErrPersistence)
	}
	metrics.MembersJoinedTotal.Inc()

	if err := s.roomRepo.UpdateRoom(ctx, &room.UpdateRoomParams{
		RoomID:       roomId,
		LastActivity: now,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to update room activity", "error", err)
	}

	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return domain.JoinRoomResponse{}, fmt.Errorf("%w: failed to fetch room", domain.ErrPersistence)
	}

	members, err := s.getMembers(ctx, roomId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get members", "error", err)
		return domain.JoinRoomResponse{}, fmt.Errorf("%w: failed to fetch room members", domain.ErrPersistence)
	}

	if joined, ok := domain.FindMember(members, memberId); ok {
		s.publishChange(ctx, roomId, domain.TableMembers, domain.ChangeInsert, joined)
	}

	return domain.JoinRoomResponse{
		RoomID:   roomId,
		MemberID: memberId,
		RoomData: toDomainRoom(roomId, rm),
		Members:  members,
	}, nil
}

func (s service) GetRoom(ctx context.Context, roomCode string) (domain.RoomState, error) {
	if strings.TrimSpace(roomCode) == "" {
		return domain.RoomState{}, fmt.Errorf("%w: missing required field: room code", domain.ErrValidation)
	}

	roomId, rm, err := s.getActiveRoomIdByCode(ctx, roomCode)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to find room", "error", err)
		return domain.RoomState{}, err
	}

	members, err := s.getMembers(ctx, roomId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get members", "error", err)
		return domain.RoomState{}, fmt.Errorf("%w: failed to fetch room members", domain.ErrPersistence)
	}

	return domain.RoomState{
		Room:    toDomainRoom(roomId, rm),
		Members: members,
	}, nil
}
