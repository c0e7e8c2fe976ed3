package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/pkg/randstr"
)

const roomCodeLength = 6

var (
	ErrRoomNotFound      = fmt.Errorf("room %w or inactive", domain.ErrNotFound)
	ErrMemberNotFound    = fmt.Errorf("member %w in active room", domain.ErrNotFound)
	ErrMemberNameTaken   = fmt.Errorf("%w: a member with this name is already in the room", domain.ErrConflict)
	ErrRoomCodeExhausted = fmt.Errorf("%w: unable to generate unique room code", domain.ErrCapacity)
	ErrHostOnly          = fmt.Errorf("%w: only the host can trigger this event", domain.ErrPermissionDenied)
	ErrInvalidEventType  = fmt.Errorf("%w: invalid event type", domain.ErrValidation)
	ErrInvalidTable      = fmt.Errorf("%w: invalid table", domain.ErrValidation)
)

type iRoomRepo interface {
	// room
	ClaimRoomCode(ctx context.Context, roomCode, roomId string) (bool, error)
	ReleaseRoomCode(ctx context.Context, roomCode string) error
	GetRoomIdByCode(ctx context.Context, roomCode string) (string, error)
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(ctx context.Context, roomId string) (room.Room, error)
	UpdateRoom(context.Context, *room.UpdateRoomParams) error
	DeactivateRoom(ctx context.Context, roomId string) error
	RemoveRoom(ctx context.Context, roomId string) error
	// member
	SetMember(context.Context, *room.SetMemberParams) error
	GetMember(ctx context.Context, memberId string) (room.Member, error)
	GetMemberIds(ctx context.Context, roomId string) ([]string, error)
	RemoveMember(context.Context, *room.RemoveMemberParams) error
	UpdateMemberIsHost(ctx context.Context, memberId string, isHost bool) error
	UpdateMemberLastSeen(ctx context.Context, memberId string, lastSeen int64) error
	// event
	AddEvent(context.Context, *room.AddEventParams) error
	// changes
	PublishChange(ctx context.Context, roomId string, change domain.Change) error
	SubscribeChanges(ctx context.Context, roomId string, table domain.Table) (room.ChangeSubscription, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type service struct {
	roomRepo     iRoomRepo
	generator    iGenerator
	logger       *slog.Logger
	codeAttempts int
	now          func() time.Time
}

func NewService(roomRepo iRoomRepo, logger *slog.Logger, codeAttempts int) *service {
	return &service{
		roomRepo:     roomRepo,
		generator:    randstr.New([]byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")),
		logger:       logger,
		codeAttempts: codeAttempts,
		now:          time.Now,
	}
}
