// Package sessionstate holds the client's mirror of the current room, the
// local member and the member list, persisted so a restart can resume.
package sessionstate

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/sharetube/watchparty/internal/client/localstore"
	"github.com/sharetube/watchparty/internal/domain"
)

const (
	RoomKey    = "watchparty_current_room"
	MemberKey  = "watchparty_current_member"
	MembersKey = "watchparty_room_members"
)

// Snapshot is a copy of the session. Room and Member are nil when
// disconnected.
type Snapshot struct {
	Room    *domain.Room    `json:"room"`
	Member  *domain.Member  `json:"member"`
	Members []domain.Member `json:"members"`
}

func (s Snapshot) Connected() bool {
	return s.Room != nil && s.Member != nil
}

// Session is shared by the lifecycle manager, the realtime bridge and the
// event processor. Every mutation replaces whole values.
type Session struct {
	store  *localstore.Store
	logger *slog.Logger

	mu      sync.RWMutex
	room    *domain.Room
	member  *domain.Member
	members []domain.Member
}

// New restores the session persisted in store.
func New(store *localstore.Store, logger *slog.Logger) *Session {
	s := &Session{
		store:   store,
		logger:  logger,
		room:    localstore.Get[*domain.Room](store, RoomKey, nil),
		member:  localstore.Get[*domain.Member](store, MemberKey, nil),
		members: localstore.Get[[]domain.Member](store, MembersKey, nil),
	}
	if s.room == nil || s.member == nil {
		s.room, s.member, s.members = nil, nil, nil
	}

	return s
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	var snap Snapshot
	if s.room != nil {
		room := s.room.Clone()
		snap.Room = &room
	}
	if s.member != nil {
		member := *s.member
		snap.Member = &member
	}
	snap.Members = slices.Clone(s.members)

	return snap
}

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.room != nil && s.member != nil
}

func (s *Session) Room() (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.room == nil {
		return domain.Room{}, false
	}

	return s.room.Clone(), true
}

func (s *Session) Member() (domain.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.member == nil {
		return domain.Member{}, false
	}

	return *s.member, true
}

func (s *Session) Members() []domain.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.members)
}

// Connect replaces the whole session.
func (s *Session) Connect(room domain.Room, member domain.Member, members []domain.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room = room.Clone()
	s.room = &room
	s.member = &member
	s.members = slices.Clone(members)
	s.persist(RoomKey, s.room)
	s.persist(MemberKey, s.member)
	s.persist(MembersKey, s.members)
}

// UpdateRoom replaces the room with fn's result. It reports false without
// calling fn when there is no session.
func (s *Session) UpdateRoom(fn func(room domain.Room) domain.Room) (domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil || s.member == nil {
		return domain.Room{}, false
	}

	room := fn(s.room.Clone()).Clone()
	s.room = &room
	s.persist(RoomKey, s.room)

	return room.Clone(), true
}

// SetMembers replaces the member list and refreshes the local member from
// it. It reports false when there is no session.
func (s *Session) SetMembers(members []domain.Member) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil || s.member == nil {
		return false
	}

	s.members = slices.Clone(members)
	s.persist(MembersKey, s.members)

	if self, ok := domain.FindMember(members, s.member.ID); ok && self != *s.member {
		s.member = &self
		s.persist(MemberKey, s.member)
	}

	return true
}

// Clear drops the session and its persisted copy.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.room, s.member, s.members = nil, nil, nil
	for _, key := range []string{RoomKey, MemberKey, MembersKey} {
		if err := s.store.Delete(key); err != nil {
			s.logger.Warn("failed to delete session key", "key", key, "error", err)
		}
	}
}

func (s *Session) persist(key string, value any) {
	if err := s.store.Set(key, value); err != nil {
		s.logger.Warn("failed to persist session", "key", key, "error", err)
	}
}
