package room

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/metrics"
	"github.com/sharetube/watchparty/internal/repository/room"
)

type SyncEventParams struct {
	RoomId    string
	MemberId  string
	EventType domain.EventType
	EventData domain.EventData
}

// roomUpdate maps an accepted event onto the room fields it changes.
func roomUpdate(roomId string, eventType domain.EventType, data domain.EventData, now int64) *room.UpdateRoomParams {
	update := room.UpdateRoomParams{
		RoomID:       roomId,
		LastActivity: now,
	}

	switch eventType {
	case domain.EventTypeServerChange:
		update.CurrentServerIndex = data.ServerIndex
	case domain.EventTypeEpisodeChange:
		update.CurrentSeason = data.Season
		update.CurrentEpisode = data.Episode
	case domain.EventTypePlay:
		update.IsPlaying = domain.Bool(true)
		update.CurrentTime = data.CurrentTime
	case domain.EventTypePause:
		update.IsPlaying = domain.Bool(false)
		update.CurrentTime = data.CurrentTime
	case domain.EventTypeSeek:
		update.CurrentTime = data.CurrentTime
	case domain.EventTypeForceSync:
		update.CurrentTime = data.CurrentTime
		update.CurrentServerIndex = data.ServerIndex
		update.CurrentSeason = data.Season
		update.CurrentEpisode = data.Episode
	}

	return &update
}

func (s service) SyncEvent(ctx context.Context, params *SyncEventParams) (domain.SyncEventResponse, error) {
	if params.RoomId == "" || params.MemberId == "" || params.EventType == "" {
		return domain.SyncEventResponse{}, fmt.Errorf("%w: missing required fields: room id, member id, event type", domain.ErrValidation)
	}

	if !params.EventType.Valid() {
		metrics.SyncEventsRejectedTotal.WithLabelValues("invalid_type").Inc()
		s.logger.InfoContext(ctx, "invalid event type", "event_type", params.EventType)
		return domain.SyncEventResponse{}, ErrInvalidEventType
	}

	member, err := s.getRoomMember(ctx, params.RoomId, params.MemberId)
	if err != nil {
		metrics.SyncEventsRejectedTotal.WithLabelValues("not_found").Inc()
		s.logger.InfoContext(ctx, "failed to get member", "error", err)
		return domain.SyncEventResponse{}, err
	}

	if _, err := s.getActiveRoom(ctx, params.RoomId); err != nil {
		metrics.SyncEventsRejectedTotal.WithLabelValues("not_found").Inc()
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return domain.SyncEventResponse{}, ErrMemberNotFound
	}

	if params.EventType.HostOnly() && !member.IsHost {
		metrics.SyncEventsRejectedTotal.WithLabelValues("not_host").Inc()
		s.logger.InfoContext(ctx, "host only event from non host", "event_type", params.EventType)
		return domain.SyncEventResponse{}, ErrHostOnly
	}

	eventData, err := json.Marshal(params.EventData)
	if err != nil {
		return domain.SyncEventResponse{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	eventId := uuid.NewString()
	createdAt := s.now()
	if err := s.roomRepo.AddEvent(ctx, &room.AddEventParams{
		EventID:   eventId,
		RoomID:    params.RoomId,
		MemberID:  params.MemberId,
		EventType: string(params.EventType),
		EventData: eventData,
		CreatedAt: createdAt.UnixMilli(),
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to create sync event", "error", err)
		return domain.SyncEventResponse{}, fmt.Errorf("%w: failed to create sync event", domain.ErrPersistence)
	}
	metrics.SyncEventsTotal.WithLabelValues(string(params.EventType)).Inc()

	s.publishChange(ctx, params.RoomId, domain.TableEvents, domain.ChangeInsert, domain.SyncEvent{
		ID:        eventId,
		RoomID:    params.RoomId,
		MemberID:  params.MemberId,
		EventType: params.EventType,
		EventData: params.EventData,
		CreatedAt: createdAt.UTC(),
	})

	// the event is already stored, so a failed room update is not an error
	if err := s.roomRepo.UpdateRoom(ctx, roomUpdate(params.RoomId, params.EventType, params.EventData, createdAt.UnixMilli())); err != nil {
		s.logger.WarnContext(ctx, "failed to update room state", "error", err)
	} else {
		s.publishRoom(ctx, params.RoomId)
	}

	return domain.SyncEventResponse{EventID: eventId}, nil
}

func (s service) SubscribeChanges(ctx context.Context, roomId string, table domain.Table) (room.ChangeSubscription, error) {
	if !table.Valid() {
		return nil, ErrInvalidTable
	}

	if _, err := s.getActiveRoom(ctx, roomId); err != nil {
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return nil, err
	}

	sub, err := s.roomRepo.SubscribeChanges(ctx, roomId, table)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to subscribe to changes", "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	return sub, nil
}
