package inmemory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/repository/connection"
)

// repo tracks open realtime connections so they can be counted per room
// and closed together on shutdown.
type repo struct {
	conns  map[*websocket.Conn]connection.Info
	rooms  map[string]int
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		conns:  make(map[*websocket.Conn]connection.Info),
		rooms:  make(map[string]int),
		logger: logger,
	}
}

func (r *repo) Add(conn *websocket.Conn, info connection.Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "params", info)
	if _, ok := r.conns[conn]; ok {
		r.logger.Debug("returned", "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.conns[conn] = info
	r.rooms[info.RoomID]++

	return nil
}

// RemoveByConn closes conn and forgets it.
func (r *repo) RemoveByConn(conn *websocket.Conn) (connection.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.conns[conn]
	if !ok {
		r.logger.Debug("returned", "error", connection.ErrNotFound)
		return connection.Info{}, connection.ErrNotFound
	}
	r.logger.Debug("called", "params", info)
	conn.Close()

	delete(r.conns, conn)
	r.rooms[info.RoomID]--
	if r.rooms[info.RoomID] <= 0 {
		delete(r.rooms, info.RoomID)
	}

	return info, nil
}

func (r *repo) CountByRoom(roomId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.rooms[roomId]
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

// CloseAll closes every tracked connection and returns how many were open.
func (r *repo) CloseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	closed := len(r.conns)
	for conn := range r.conns {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}

	r.conns = make(map[*websocket.Conn]connection.Info)
	r.rooms = make(map[string]int)
	r.logger.Info("closed realtime connections", "count", closed)

	return closed
}
