package redis

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func (r repo) getChangesChannel(roomId string, table domain.Table) string {
	return "room:" + roomId + ":changes:" + string(table)
}

func (r repo) PublishChange(ctx context.Context, roomId string, change domain.Change) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
		"table":   change.Table,
		"type":    change.Type,
	})
	data, err := json.Marshal(change)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if err := r.rc.Publish(ctx, r.getChangesChannel(roomId, change.Table), data).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

type changeSubscription struct {
	ps      *redis.PubSub
	changes chan domain.Change
	done    chan struct{}
	once    sync.Once
}

func (s *changeSubscription) Changes() <-chan domain.Change {
	return s.changes
}

func (s *changeSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})

	return err
}

// SubscribeChanges returns once the subscription is confirmed by the server,
// so no change published after the call is missed.
func (r repo) SubscribeChanges(ctx context.Context, roomId string, table domain.Table) (room.ChangeSubscription, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
		"table":   table,
	})
	ps := r.rc.Subscribe(ctx, r.getChangesChannel(roomId, table))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	sub := &changeSubscription{
		ps:      ps,
		changes: make(chan domain.Change, 64),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(sub.changes)
		for msg := range ps.Channel() {
			var change domain.Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				r.logger.Warn("failed to decode change", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case sub.changes <- change:
			case <-sub.done:
				return
			}
		}
	}()

	return sub, nil
}
