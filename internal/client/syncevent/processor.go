// Package syncevent applies playback sync events to the session mirror and
// sends the local member's events to the registry.
package syncevent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/sharetube/watchparty/internal/client/notify"
	"github.com/sharetube/watchparty/internal/client/sessionstate"
	"github.com/sharetube/watchparty/internal/client/streamtarget"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/pkg/scheduler"
	"golang.org/x/time/rate"
)

var (
	ErrHostOnly  = fmt.Errorf("only the host can send this event: %w", domain.ErrPermissionDenied)
	ErrThrottled = errors.New("sync event throttled")
)

type iRegistry interface {
	SyncEvent(ctx context.Context, roomID string, req domain.SyncEventRequest) (domain.SyncEventResponse, error)
}

type Config struct {
	// SendThrottle drops outgoing play, pause and seek events sent within
	// this window of the previous one. Zero disables it.
	SendThrottle time.Duration
	// TimestampInterval bounds how often a member's playback position is
	// announced.
	TimestampInterval time.Duration
}

type Processor struct {
	session  *sessionstate.Session
	resolver *streamtarget.Resolver
	notifier *notify.Notifier
	registry iRegistry
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	mu         sync.Mutex
	lastSent   time.Time
	limiters   map[string]*rate.Limiter
	trailing   map[string]*scheduler.Debouncer
	timestamps map[string]notify.MemberTimestamp
	published  map[string]notify.MemberTimestamp
}

func NewProcessor(
	session *sessionstate.Session,
	resolver *streamtarget.Resolver,
	notifier *notify.Notifier,
	registry iRegistry,
	logger *slog.Logger,
	cfg Config,
) *Processor {
	if cfg.TimestampInterval == 0 {
		cfg.TimestampInterval = time.Second
	}

	return &Processor{
		session:    session,
		resolver:   resolver,
		notifier:   notifier,
		registry:   registry,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		limiters:   make(map[string]*rate.Limiter),
		trailing:   make(map[string]*scheduler.Debouncer),
		timestamps: make(map[string]notify.MemberTimestamp),
		published:  make(map[string]notify.MemberTimestamp),
	}
}

// Handle applies an event received from the room. Events without a session,
// from the local member or of an unknown type are dropped. Privilege is not
// checked here: server_change and episode_change are expected only from the
// host and the registry enforces that.
func (p *Processor) Handle(event domain.SyncEvent) {
	member, ok := p.session.Member()
	if !ok || !p.session.Connected() {
		p.logger.Debug("dropping sync event without session", "event_type", event.EventType)
		return
	}

	if event.MemberID == member.ID {
		return
	}

	if !event.EventType.Valid() {
		p.logger.Debug("ignoring unknown sync event", "event_type", event.EventType)
		return
	}

	p.apply(event, false)
}

func (p *Processor) apply(event domain.SyncEvent, self bool) {
	data := event.EventData

	switch event.EventType {
	case domain.EventTypeServerChange:
		if data.ServerIndex == nil {
			p.logger.Warn("server_change without server index", "event_id", event.ID)
			return
		}
		if _, ok := p.session.UpdateRoom(func(room domain.Room) domain.Room {
			room.CurrentServerIndex = *data.ServerIndex
			return room
		}); !ok {
			return
		}
		p.notifier.ServerChange.Publish(notify.ServerChange{
			MemberID:    event.MemberID,
			ServerIndex: *data.ServerIndex,
			Self:        self,
		})

	case domain.EventTypeEpisodeChange:
		if data.Season == nil || data.Episode == nil {
			p.logger.Warn("episode_change without season or episode", "event_id", event.ID)
			return
		}
		if _, ok := p.session.UpdateRoom(func(room domain.Room) domain.Room {
			room.CurrentSeason = domain.Int(*data.Season)
			room.CurrentEpisode = domain.Int(*data.Episode)
			return room
		}); !ok {
			return
		}
		p.notifier.EpisodeChange.Publish(notify.EpisodeChange{
			MemberID: event.MemberID,
			Season:   *data.Season,
			Episode:  *data.Episode,
			Self:     self,
		})

	case domain.EventTypePlay, domain.EventTypePause, domain.EventTypeSeek:
		if _, ok := p.session.UpdateRoom(func(room domain.Room) domain.Room {
			switch event.EventType {
			case domain.EventTypePlay:
				room.IsPlaying = true
			case domain.EventTypePause:
				room.IsPlaying = false
			}
			if data.CurrentTime != nil {
				room.CurrentTime = *data.CurrentTime
			}
			return room
		}); !ok {
			return
		}
		topic, _ := p.notifier.Playback(event.EventType)
		topic.Publish(notify.Playback{
			Type:        event.EventType,
			MemberID:    event.MemberID,
			CurrentTime: data.CurrentTime,
			Duration:    data.Duration,
			Self:        self,
		})

	case domain.EventTypeForceSync:
		room, ok := p.session.UpdateRoom(func(room domain.Room) domain.Room {
			if data.CurrentTime != nil {
				room.CurrentTime = *data.CurrentTime
			}
			if data.ServerIndex != nil {
				room.CurrentServerIndex = *data.ServerIndex
			}
			if room.MediaType == domain.MediaTypeTV {
				if data.Season != nil {
					room.CurrentSeason = domain.Int(*data.Season)
				}
				if data.Episode != nil {
					room.CurrentEpisode = domain.Int(*data.Episode)
				}
			}
			return room
		})
		if !ok {
			return
		}
		p.notifier.ForceSync.Publish(notify.ForceSync{
			MemberID:    event.MemberID,
			CurrentTime: room.CurrentTime,
			URL:         p.resolver.RoomURL(room, domain.Float(room.CurrentTime)),
			Self:        self,
		})
	}

	if data.CurrentTime != nil {
		p.recordTimestamp(event.MemberID, *data.CurrentTime)
	}
}

// recordTimestamp stores the member's position. The first update of a
// window is announced at once, the last one when the window has passed.
func (p *Processor) recordTimestamp(memberID string, currentTime float64) {
	p.mu.Lock()
	limiter, ok := p.limiters[memberID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(p.cfg.TimestampInterval), 1)
		p.limiters[memberID] = limiter
	}
	ts := notify.MemberTimestamp{MemberID: memberID, CurrentTime: currentTime, At: p.now()}
	p.timestamps[memberID] = ts

	if limiter.Allow() {
		p.published[memberID] = ts
		p.mu.Unlock()
		p.notifier.MemberTimestamp.Publish(ts)
		return
	}

	trailing, ok := p.trailing[memberID]
	if !ok {
		trailing = scheduler.NewDebouncer(p.cfg.TimestampInterval, func() { p.publishLatest(memberID) })
		p.trailing[memberID] = trailing
	}
	p.mu.Unlock()

	trailing.Trigger()
}

func (p *Processor) publishLatest(memberID string) {
	p.mu.Lock()
	ts, ok := p.timestamps[memberID]
	if !ok || ts == p.published[memberID] {
		p.mu.Unlock()
		return
	}
	p.published[memberID] = ts
	p.mu.Unlock()

	p.notifier.MemberTimestamp.Publish(ts)
}

// Timestamps returns the last known playback position per member.
func (p *Processor) Timestamps() map[string]notify.MemberTimestamp {
	p.mu.Lock()
	defer p.mu.Unlock()

	return maps.Clone(p.timestamps)
}

// Reset forgets per-member state of the previous session.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, trailing := range p.trailing {
		trailing.Cancel()
	}
	clear(p.trailing)
	clear(p.limiters)
	clear(p.timestamps)
	clear(p.published)
	p.lastSent = time.Time{}
}

// SendSyncEvent sends an event of the local member to the registry. It fails
// without a remote call when not connected or when a guest sends a host-only
// event. On success the event is applied locally as a self event.
func (p *Processor) SendSyncEvent(ctx context.Context, eventType domain.EventType, data domain.EventData) (domain.SyncEventResponse, error) {
	if !eventType.Valid() {
		return domain.SyncEventResponse{}, fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, eventType)
	}

	snap := p.session.Snapshot()
	if !snap.Connected() {
		return domain.SyncEventResponse{}, domain.ErrNotConnected
	}

	if eventType.HostOnly() && !snap.Member.IsHost {
		return domain.SyncEventResponse{}, ErrHostOnly
	}

	if p.throttled(eventType) {
		p.logger.Debug("throttling sync event", "event_type", eventType)
		return domain.SyncEventResponse{}, ErrThrottled
	}

	resp, err := p.registry.SyncEvent(ctx, snap.Room.ID, domain.SyncEventRequest{
		MemberID:  snap.Member.ID,
		EventType: eventType,
		EventData: data,
	})
	if err != nil {
		p.logger.Info("failed to send sync event", "event_type", eventType, "error", err)
		return domain.SyncEventResponse{}, err
	}

	p.apply(domain.SyncEvent{
		ID:        resp.EventID,
		RoomID:    snap.Room.ID,
		MemberID:  snap.Member.ID,
		EventType: eventType,
		EventData: data,
		CreatedAt: p.now(),
	}, true)

	return resp, nil
}

func (p *Processor) throttled(eventType domain.EventType) bool {
	if p.cfg.SendThrottle <= 0 || eventType.HostOnly() || eventType == domain.EventTypeForceSync {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.lastSent.IsZero() && now.Sub(p.lastSent) < p.cfg.SendThrottle {
		return true
	}
	p.lastSent = now

	return false
}
