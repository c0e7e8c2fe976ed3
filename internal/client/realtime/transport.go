package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusSubscribing  Status = "subscribing"
	StatusSubscribed   Status = "subscribed"
	StatusError        Status = "error"
)

type SubscribeParams struct {
	URL   string
	Table domain.Table
	// AliveInterval is how often ALIVE is sent. Zero sends nothing.
	AliveInterval time.Duration
	OnChange      func(domain.Change)
	OnStatus      func(status Status, err error)
}

// Transport dials the registry's change feed, one connection per table.
type Transport struct {
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewTransport(logger *slog.Logger) *Transport {
	return &Transport{
		dialer: &websocket.Dialer{
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: true,
		},
		logger: logger,
	}
}

// Subscription is the feed of one table. Callbacks run on its own goroutine
// and stop once Close is called.
type Subscription struct {
	table  domain.Table
	logger *slog.Logger
	params SubscribeParams
	router *wsrouter.WSRouter
	cancel context.CancelFunc

	mu      sync.Mutex
	status  Status
	conn    *websocket.Conn
	closed  bool
	writeMu sync.Mutex
}

type subscribedPayload struct {
	Table domain.Table `json:"table"`
}

// Subscribe starts connecting in the background and returns immediately.
func (t *Transport) Subscribe(ctx context.Context, params SubscribeParams) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		table:  params.Table,
		logger: t.logger.With("table", params.Table),
		params: params,
		router: wsrouter.New(),
		cancel: cancel,
		status: StatusDisconnected,
	}

	wsrouter.Handle(s.router, "SUBSCRIBED", func(_ context.Context, _ *websocket.Conn, payload subscribedPayload) error {
		s.setStatus(StatusSubscribed, nil)
		return nil
	})
	wsrouter.Handle(s.router, "CHANGE", func(_ context.Context, _ *websocket.Conn, change domain.Change) error {
		if s.isClosed() || s.params.OnChange == nil {
			return nil
		}
		s.params.OnChange(change)
		return nil
	})

	go s.run(ctx, t.dialer)

	return s
}

func (s *Subscription) run(ctx context.Context, dialer *websocket.Dialer) {
	s.setStatus(StatusSubscribing, nil)

	conn, resp, err := dialer.DialContext(ctx, s.params.URL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			err = fmt.Errorf("%w: dial failed with status %d: %w", domain.ErrTransport, resp.StatusCode, err)
			if resp.StatusCode == http.StatusNotFound {
				err = fmt.Errorf("%w: %w", domain.ErrNotFound, err)
			}
		} else {
			err = fmt.Errorf("%w: dial failed: %w", domain.ErrTransport, err)
		}
		s.fail(ctx, err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	if s.params.AliveInterval > 0 {
		go s.keepAlive(ctx, conn)
	}

	err = s.router.ServeConn(ctx, conn, func(err error) {
		s.logger.Debug("failed to handle realtime message", "error", err)
	})

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		s.setStatus(StatusDisconnected, nil)
		return
	}
	s.fail(ctx, fmt.Errorf("%w: %w", domain.ErrTransport, err))
}

func (s *Subscription) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		s.setStatus(StatusDisconnected, nil)
		return
	}

	s.logger.Warn("realtime subscription failed", "error", err)
	s.setStatus(StatusError, err)
}

func (s *Subscription) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.params.AliveInterval)
	defer ticker.Stop()

	msg, _ := json.Marshal(map[string]string{"type": "ALIVE"})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.write(conn, websocket.TextMessage, msg); err != nil {
				s.logger.Debug("failed to send alive", "error", err)
				return
			}
		}
	}
}

func (s *Subscription) write(conn *websocket.Conn, messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(messageType, data)
}

func (s *Subscription) setStatus(status Status, err error) {
	s.mu.Lock()
	if s.closed && status != StatusDisconnected {
		s.mu.Unlock()
		return
	}
	changed := s.status != status
	s.status = status
	s.mu.Unlock()

	if changed && s.params.OnStatus != nil && !s.isClosed() {
		s.params.OnStatus(status, err)
	}
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *Subscription) Table() domain.Table {
	return s.table
}

func (s *Subscription) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Close stops the subscription without waiting for its goroutine, so it is
// safe to call from a callback. No callback runs after Close returns
// except one already in progress.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.status = StatusDisconnected
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		err := s.write(conn, websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			s.logger.Debug("failed to send close message", "error", err)
		}
		conn.Close()
	}
}
