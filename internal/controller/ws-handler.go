package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/metrics"
	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
)

// Output is a message sent to realtime subscribers.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type EmptyStruct struct{}

func (c controller) handleAlive(ctx context.Context, _ *websocket.Conn, _ EmptyStruct) error {
	memberId := c.getMemberIdFromCtx(ctx)
	if memberId == "" {
		return nil
	}

	if err := c.roomService.TouchMember(ctx, c.getRoomIdFromCtx(ctx), memberId); err != nil {
		return fmt.Errorf("failed to touch member: %w", err)
	}

	return nil
}

func (c controller) writeOutput(conn *websocket.Conn, output *Output) error {
	data, err := json.Marshal(output)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// realtime streams row changes of one table of a room. The subscription is
// made before the upgrade so a missing room is answered with a plain 404.
func (c controller) realtime(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	memberId := r.URL.Query().Get("member-id")
	table := domain.Table(r.URL.Query().Get("table"))

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("room_id", roomId))
	ctx = context.WithValue(ctx, roomIdCtxKey, roomId)
	ctx = context.WithValue(ctx, memberIdCtxKey, memberId)

	sub, err := c.roomService.SubscribeChanges(ctx, roomId, table)
	if err != nil {
		c.writeError(w, r.WithContext(ctx), err)
		return
	}
	defer sub.Close()

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to upgrade connection", "error", err)
		return
	}

	if err := c.connRepo.Add(conn, connection.Info{
		RoomID:   roomId,
		MemberID: memberId,
		Table:    string(table),
	}); err != nil {
		c.logger.InfoContext(ctx, "failed to register connection", "error", err)
		conn.Close()
		return
	}
	metrics.RealtimeConnections.Inc()
	defer func() {
		metrics.RealtimeConnections.Dec()
		if _, err := c.connRepo.RemoveByConn(conn); err != nil && !errors.Is(err, connection.ErrNotFound) {
			c.logger.InfoContext(ctx, "failed to remove connection", "error", err)
		}
	}()

	if err := c.writeOutput(conn, &Output{
		Type:    "SUBSCRIBED",
		Payload: map[string]any{"table": table},
	}); err != nil {
		c.logger.InfoContext(ctx, "failed to confirm subscription", "error", err)
		return
	}
	c.logger.InfoContext(ctx, "realtime subscribed", "table", table, "member_id", memberId)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		err := c.wsRouter.ServeConn(ctx, conn, func(err error) {
			c.logger.InfoContext(ctx, "failed to handle message", "error", err)
		})
		c.logger.DebugContext(ctx, "realtime reader stopped", "error", err)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.Changes():
			if !ok {
				return
			}

			if err := c.writeOutput(conn, &Output{
				Type:    "CHANGE",
				Payload: change,
			}); err != nil {
				c.logger.InfoContext(ctx, "failed to write change", "error", err)
				return
			}
		}
	}
}
