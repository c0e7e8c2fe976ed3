// Package watchparty is the client side room lifecycle: create, join, leave
// and resume a session, keeping the realtime bridge bound to it.
package watchparty

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sharetube/watchparty/internal/client/notify"
	"github.com/sharetube/watchparty/internal/client/sessionstate"
	"github.com/sharetube/watchparty/internal/domain"
)

type iRegistry interface {
	CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.CreateRoomResponse, error)
	JoinRoom(ctx context.Context, req domain.JoinRoomRequest) (domain.JoinRoomResponse, error)
	GetRoom(ctx context.Context, roomCode string) (domain.RoomState, error)
	LeaveRoom(ctx context.Context, roomID, memberID string) (domain.LeaveRoomResponse, error)
}

type iBridge interface {
	Subscribe(ctx context.Context, roomID, memberID string)
	Teardown()
	RefreshMembers(ctx context.Context) error
	OnForcedDisconnect(fn func(memberID, reason string))
}

type iProcessor interface {
	Reset()
}

type ManagerConfig struct {
	// RefreshDelay is how long after joining the member list is refetched.
	RefreshDelay   time.Duration
	RequestTimeout time.Duration
}

type Manager struct {
	registry  iRegistry
	bridge    iBridge
	processor iProcessor
	session   *sessionstate.Session
	notifier  *notify.Notifier
	logger    *slog.Logger
	cfg       ManagerConfig

	mu           sync.Mutex
	refreshTimer *time.Timer
}

func NewManager(
	registry iRegistry,
	bridge iBridge,
	processor iProcessor,
	session *sessionstate.Session,
	notifier *notify.Notifier,
	logger *slog.Logger,
	cfg ManagerConfig,
) *Manager {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	m := &Manager{
		registry:  registry,
		bridge:    bridge,
		processor: processor,
		session:   session,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
	bridge.OnForcedDisconnect(func(memberID, reason string) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if member, ok := m.session.Member(); !ok || member.ID != memberID {
			return
		}
		m.disconnectLocked(reason)
	})

	return m
}

type CreateRoomParams struct {
	HostName      string
	MediaID       string
	MediaType     domain.MediaType
	ProviderIndex int
	Season        *int
	Episode       *int
}

func (p CreateRoomParams) validate() error {
	var missing []string
	if strings.TrimSpace(p.HostName) == "" {
		missing = append(missing, "host name")
	}
	if strings.TrimSpace(p.MediaID) == "" {
		missing = append(missing, "media id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}

	if !p.MediaType.Valid() {
		return fmt.Errorf("%w: invalid media type %q", domain.ErrValidation, p.MediaType)
	}

	if p.MediaType == domain.MediaTypeTV && (p.Season == nil || p.Episode == nil) {
		return fmt.Errorf("%w: season and episode are required for tv shows", domain.ErrValidation)
	}

	return nil
}

// CreateRoom creates a room hosted by the local user and connects to it.
func (m *Manager) CreateRoom(ctx context.Context, params CreateRoomParams) (domain.CreateRoomResponse, error) {
	if err := params.validate(); err != nil {
		return domain.CreateRoomResponse{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectLocked("")

	req := domain.CreateRoomRequest{
		HostName:    strings.TrimSpace(params.HostName),
		MediaID:     strings.TrimSpace(params.MediaID),
		MediaType:   params.MediaType,
		ServerIndex: domain.Int(params.ProviderIndex),
	}
	if params.MediaType == domain.MediaTypeTV {
		req.Season = domain.Int(*params.Season)
		req.Episode = domain.Int(*params.Episode)
	}

	resp, err := m.registry.CreateRoom(ctx, req)
	if err != nil {
		m.logger.InfoContext(ctx, "failed to create room", "error", err)
		return domain.CreateRoomResponse{}, err
	}

	state, err := m.registry.GetRoom(ctx, resp.RoomCode)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to fetch created room, using request values", "error", err)
		state = createdRoomState(resp, req, time.Now().UTC())
	}

	host, ok := domain.FindMember(state.Members, resp.HostMemberID)
	if !ok {
		host = domain.Member{ID: resp.HostMemberID, RoomID: resp.RoomID, MemberName: req.HostName, IsHost: true, IsOnline: true}
	}

	m.connectLocked(ctx, state.Room, host, state.Members)
	m.logger.InfoContext(ctx, "room created", "room_id", resp.RoomID, "room_code", resp.RoomCode)

	return resp, nil
}

func createdRoomState(resp domain.CreateRoomResponse, req domain.CreateRoomRequest, now time.Time) domain.RoomState {
	room := domain.Room{
		ID:                 resp.RoomID,
		RoomCode:           resp.RoomCode,
		HostName:           req.HostName,
		MediaID:            req.MediaID,
		MediaType:          req.MediaType,
		CurrentServerIndex: *req.ServerIndex,
		CurrentSeason:      req.Season,
		CurrentEpisode:     req.Episode,
		CreatedAt:          now,
		LastActivity:       now,
		IsActive:           true,
	}
	host := domain.Member{
		ID:         resp.HostMemberID,
		RoomID:     resp.RoomID,
		MemberName: req.HostName,
		IsHost:     true,
		IsOnline:   true,
		JoinedAt:   now,
		LastSeen:   now,
	}

	return domain.RoomState{Room: room, Members: []domain.Member{host}}
}

// JoinRoom joins the active room with roomCode as memberName.
func (m *Manager) JoinRoom(ctx context.Context, roomCode, memberName string) (domain.JoinRoomResponse, error) {
	roomCode = strings.ToUpper(strings.TrimSpace(roomCode))
	memberName = strings.TrimSpace(memberName)
	if roomCode == "" || memberName == "" {
		return domain.JoinRoomResponse{}, fmt.Errorf("%w: room code and member name are required", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectLocked("")

	resp, err := m.registry.JoinRoom(ctx, domain.JoinRoomRequest{RoomCode: roomCode, MemberName: memberName})
	if err != nil {
		m.logger.InfoContext(ctx, "failed to join room", "room_code", roomCode, "error", err)
		return domain.JoinRoomResponse{}, err
	}

	member, ok := domain.FindMember(resp.Members, resp.MemberID)
	if !ok {
		member = domain.Member{ID: resp.MemberID, RoomID: resp.RoomID, MemberName: memberName, IsOnline: true}
	}

	m.connectLocked(ctx, resp.RoomData, member, resp.Members)
	m.scheduleRefreshLocked(resp.MemberID)
	m.logger.InfoContext(ctx, "room joined", "room_id", resp.RoomID, "member_id", resp.MemberID)

	return resp, nil
}

func (m *Manager) connectLocked(ctx context.Context, room domain.Room, member domain.Member, members []domain.Member) {
	m.processor.Reset()
	m.session.Connect(room, member, members)
	m.bridge.Subscribe(ctx, room.ID, member.ID)
}

// scheduleRefreshLocked refetches members shortly after joining in case the
// feed missed changes made while it was connecting.
func (m *Manager) scheduleRefreshLocked(memberID string) {
	if m.cfg.RefreshDelay <= 0 {
		return
	}

	m.refreshTimer = time.AfterFunc(m.cfg.RefreshDelay, func() {
		if member, ok := m.session.Member(); !ok || member.ID != memberID {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
		defer cancel()

		if err := m.bridge.RefreshMembers(ctx); err != nil {
			m.logger.Info("failed to refresh members after join", "error", err)
		}
	})
}

// LeaveRoom tells the registry the local member left. The local session is
// torn down whatever the registry answers.
func (m *Manager) LeaveRoom(ctx context.Context) (domain.LeaveRoomResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.session.Snapshot()
	if !snap.Connected() {
		m.disconnectLocked("")
		return domain.LeaveRoomResponse{}, domain.ErrNotConnected
	}
	defer m.disconnectLocked("left room")

	resp, err := m.registry.LeaveRoom(ctx, snap.Room.ID, snap.Member.ID)
	if err != nil {
		m.logger.InfoContext(ctx, "failed to leave room", "room_id", snap.Room.ID, "error", err)
		return domain.LeaveRoomResponse{}, err
	}

	m.logger.InfoContext(ctx, "room left", "room_id", snap.Room.ID, "room_closed", resp.RoomClosed)
	return resp, nil
}

// Disconnect drops the local session without telling the registry.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectLocked("disconnected")
}

// disconnectLocked tears everything down. A non-empty reason is announced
// when a session was actually dropped.
func (m *Manager) disconnectLocked(reason string) {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	m.bridge.Teardown()
	m.processor.Reset()

	wasConnected := m.session.Connected()
	m.session.Clear()

	if wasConnected && reason != "" {
		m.logger.Info("watch party disconnected", "reason", reason)
		m.notifier.Disconnected.Publish(notify.Disconnected{Reason: reason})
	}
}

// GetRoomData refetches the room and members by room code. On failure the
// session is left untouched and the caller decides what to do.
func (m *Manager) GetRoomData(ctx context.Context) (domain.RoomState, error) {
	room, ok := m.session.Room()
	if !ok || room.RoomCode == "" {
		return domain.RoomState{}, fmt.Errorf("%w: no room code available", domain.ErrNotConnected)
	}

	state, err := m.registry.GetRoom(ctx, room.RoomCode)
	if err != nil {
		m.logger.InfoContext(ctx, "failed to get room data", "room_code", room.RoomCode, "error", err)
		return domain.RoomState{}, err
	}

	if _, ok := m.session.UpdateRoom(func(domain.Room) domain.Room { return state.Room }); !ok {
		return domain.RoomState{}, domain.ErrNotConnected
	}
	m.session.SetMembers(state.Members)

	return state, nil
}

// Initialize resumes a persisted session. A session the registry no longer
// knows is dropped.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.session.Connected() {
		return nil
	}

	if _, err := m.GetRoomData(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to restore session, clearing it", "error", err)
		m.Disconnect()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.session.Snapshot()
	if !snap.Connected() {
		return domain.ErrNotConnected
	}
	m.bridge.Subscribe(ctx, snap.Room.ID, snap.Member.ID)
	m.logger.InfoContext(ctx, "session restored", "room_id", snap.Room.ID, "members", len(snap.Members))

	return nil
}

func (m *Manager) State() sessionstate.Snapshot {
	return m.session.Snapshot()
}

func (m *Manager) IsHost() bool {
	member, ok := m.session.Member()
	return ok && member.IsHost
}
