package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/sharetube/watchparty/internal/repository/room"
	roomService "github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *roomService.CreateRoomParams) (domain.CreateRoomResponse, error)
	JoinRoom(context.Context, *roomService.JoinRoomParams) (domain.JoinRoomResponse, error)
	GetRoom(ctx context.Context, roomCode string) (domain.RoomState, error)
	LeaveRoom(context.Context, *roomService.LeaveRoomParams) (domain.LeaveRoomResponse, error)
	ListMembers(ctx context.Context, roomId string) ([]domain.Member, error)
	SyncEvent(context.Context, *roomService.SyncEventParams) (domain.SyncEventResponse, error)
	TouchMember(ctx context.Context, roomId, memberId string) error
	SubscribeChanges(ctx context.Context, roomId string, table domain.Table) (room.ChangeSubscription, error)
}

type iConnRepo interface {
	Add(*websocket.Conn, connection.Info) error
	RemoveByConn(*websocket.Conn) (connection.Info, error)
}

type Config struct {
	// RateLimit is the number of API requests allowed per IP and minute, 0 disables limiting.
	RateLimit    int
	CORS         bool
	WriteTimeout time.Duration
}

type controller struct {
	roomService iRoomService
	connRepo    iConnRepo
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsRouter    *wsrouter.WSRouter
	logger      *slog.Logger
	cfg         Config
}

func NewController(roomService iRoomService, connRepo iConnRepo, logger *slog.Logger, cfg Config) *controller {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		connRepo:    connRepo,
		validate:    validator.NewValidator(),
		logger:      logger,
		cfg:         cfg,
	}
	c.wsRouter = c.getWSRouter()

	return c
}
