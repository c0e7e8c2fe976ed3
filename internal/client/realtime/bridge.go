// Package realtime turns the registry's change feed into session updates
// and keeps the member list fresh by polling when the feed goes quiet.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sharetube/watchparty/internal/client/notify"
	"github.com/sharetube/watchparty/internal/client/sessionstate"
	"github.com/sharetube/watchparty/internal/client/streamtarget"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/pkg/scheduler"
)

type iRegistry interface {
	ListMembers(ctx context.Context, roomID string) ([]domain.Member, error)
	RealtimeURL(roomID string, table domain.Table, memberID string) string
}

type iProcessor interface {
	Handle(event domain.SyncEvent)
}

type Config struct {
	MemberDebounce time.Duration
	// LivenessWindow is how long the member feed may stay silent before
	// polling takes over.
	LivenessWindow time.Duration
	// LivenessCheck is how often the window is checked.
	LivenessCheck      time.Duration
	Poll               scheduler.PollerConfig
	ResubscribeDelay   time.Duration
	MaxPollFailures    int
	PreferenceDebounce time.Duration
	AliveInterval      time.Duration
	RequestTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MemberDebounce: 200 * time.Millisecond,
		LivenessWindow: 30 * time.Second,
		LivenessCheck:  5 * time.Second,
		Poll: scheduler.PollerConfig{
			MinInterval: 2 * time.Second,
			MaxInterval: 10 * time.Second,
			Step:        500 * time.Millisecond,
		},
		ResubscribeDelay:   3 * time.Second,
		MaxPollFailures:    5,
		PreferenceDebounce: time.Second,
		AliveInterval:      15 * time.Second,
		RequestTimeout:     10 * time.Second,
	}
}

type Bridge struct {
	registry  iRegistry
	transport *Transport
	session   *sessionstate.Session
	processor iProcessor
	resolver  *streamtarget.Resolver
	notifier  *notify.Notifier
	logger    *slog.Logger
	cfg       Config

	mu           sync.Mutex
	generation   uint64
	active       *binding
	onDisconnect func(memberID, reason string)
}

func NewBridge(
	registry iRegistry,
	transport *Transport,
	session *sessionstate.Session,
	processor iProcessor,
	resolver *streamtarget.Resolver,
	notifier *notify.Notifier,
	logger *slog.Logger,
	cfg Config,
) *Bridge {
	return &Bridge{
		registry:  registry,
		transport: transport,
		session:   session,
		processor: processor,
		resolver:  resolver,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// OnForcedDisconnect sets the function called when the bridge gives up on
// the room of memberID because it is gone or polling kept failing.
func (b *Bridge) OnForcedDisconnect(fn func(memberID, reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.onDisconnect = fn
}

// Subscribe tears down any previous room and starts following roomID.
func (b *Bridge) Subscribe(ctx context.Context, roomID, memberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.teardownLocked()

	b.generation++
	bnd := newBinding(b, b.generation, roomID, memberID)
	b.active = bnd

	for _, table := range domain.Tables {
		bnd.subscribe(table)
	}
	go bnd.watchLiveness()

	b.logger.InfoContext(ctx, "realtime bridge subscribed", "room_id", roomID, "generation", bnd.gen)
}

// Teardown stops every subscription and timer of the current room.
func (b *Bridge) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.teardownLocked()
}

func (b *Bridge) teardownLocked() {
	if b.active == nil {
		return
	}

	b.active.stop()
	b.logger.Info("realtime bridge torn down", "room_id", b.active.roomID, "generation", b.active.gen)
	b.active = nil
}

// Statuses reports the connectivity of each stream of the current room.
func (b *Bridge) Statuses() map[domain.Table]Status {
	b.mu.Lock()
	bnd := b.active
	b.mu.Unlock()

	statuses := make(map[domain.Table]Status, len(domain.Tables))
	for _, table := range domain.Tables {
		statuses[table] = StatusDisconnected
	}
	if bnd == nil {
		return statuses
	}

	bnd.mu.Lock()
	defer bnd.mu.Unlock()
	for table, sub := range bnd.subs {
		statuses[table] = sub.Status()
	}

	return statuses
}

// Polling reports whether the polling fallback is running.
func (b *Bridge) Polling() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.active != nil && b.active.poller.Running()
}

// RefreshMembers refetches the member list now.
func (b *Bridge) RefreshMembers(ctx context.Context) error {
	b.mu.Lock()
	bnd := b.active
	b.mu.Unlock()

	if bnd == nil {
		return domain.ErrNotConnected
	}

	_, err := bnd.refreshMembers(ctx, notify.SourcePolling, nil)
	return err
}

// current returns the binding of gen if it is still the active one.
func (b *Bridge) current(gen uint64) (*binding, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active == nil || b.active.gen != gen {
		return nil, false
	}

	return b.active, true
}

func (b *Bridge) forceDisconnect(gen uint64, reason string) {
	b.mu.Lock()
	if b.active == nil || b.active.gen != gen {
		b.mu.Unlock()
		return
	}
	fn := b.onDisconnect
	memberID := b.active.memberID
	b.mu.Unlock()

	b.logger.Warn("forcing disconnect", "reason", reason)
	if fn != nil {
		fn(memberID, reason)
	}
}

var errStale = errors.New("stale realtime binding")

type pendingChange struct {
	changeType domain.ChangeType
	member     domain.Member
}

type binding struct {
	bridge   *Bridge
	gen      uint64
	roomID   string
	memberID string
	ctx      context.Context
	cancel   context.CancelFunc

	memberDebounce *scheduler.Debouncer
	prefDebounce   *scheduler.Debouncer
	poller         *scheduler.AdaptivePoller

	mu              sync.Mutex
	subs            map[domain.Table]*Subscription
	lastMemberEvent time.Time
	pending         []pendingChange
	pollFailures    int
	refreshMu       sync.Mutex
}

func newBinding(b *Bridge, gen uint64, roomID, memberID string) *binding {
	ctx, cancel := context.WithCancel(context.Background())
	bnd := &binding{
		bridge:          b,
		gen:             gen,
		roomID:          roomID,
		memberID:        memberID,
		ctx:             ctx,
		cancel:          cancel,
		subs:            make(map[domain.Table]*Subscription),
		lastMemberEvent: time.Now(),
	}
	bnd.memberDebounce = scheduler.NewDebouncer(b.cfg.MemberDebounce, bnd.flushMemberChanges)
	bnd.prefDebounce = scheduler.NewDebouncer(b.cfg.PreferenceDebounce, bnd.savePreference)
	bnd.poller = scheduler.NewAdaptivePoller(b.cfg.Poll, bnd.poll)

	return bnd
}

func (bnd *binding) logger() *slog.Logger {
	return bnd.bridge.logger.With("room_id", bnd.roomID, "generation", bnd.gen)
}

func (bnd *binding) alive() bool {
	_, ok := bnd.bridge.current(bnd.gen)
	return ok && bnd.ctx.Err() == nil
}

func (bnd *binding) stop() {
	bnd.cancel()
	bnd.memberDebounce.Cancel()
	bnd.prefDebounce.Cancel()
	bnd.poller.Stop()

	bnd.mu.Lock()
	subs := bnd.subs
	bnd.subs = make(map[domain.Table]*Subscription)
	bnd.pending = nil
	bnd.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (bnd *binding) subscribe(table domain.Table) {
	b := bnd.bridge
	params := SubscribeParams{
		URL:   b.registry.RealtimeURL(bnd.roomID, table, bnd.memberID),
		Table: table,
		OnChange: func(change domain.Change) {
			if !bnd.alive() {
				return
			}
			bnd.handleChange(table, change)
		},
		OnStatus: func(status Status, err error) {
			if !bnd.alive() {
				return
			}
			bnd.handleStatus(table, status, err)
		},
	}
	if table == domain.TableMembers {
		params.AliveInterval = b.cfg.AliveInterval
	}

	sub := b.transport.Subscribe(bnd.ctx, params)

	bnd.mu.Lock()
	if bnd.ctx.Err() != nil {
		bnd.mu.Unlock()
		sub.Close()
		return
	}
	old := bnd.subs[table]
	bnd.subs[table] = sub
	bnd.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func (bnd *binding) handleStatus(table domain.Table, status Status, err error) {
	bnd.logger().Debug("realtime status changed", "table", table, "status", status)

	if status != StatusError {
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		bnd.bridge.forceDisconnect(bnd.gen, "room no longer exists")
		return
	}

	if table == domain.TableMembers && !bnd.poller.Running() {
		bnd.logger().Info("member feed failed, polling members")
		bnd.poller.Start(bnd.ctx)
	}

	time.AfterFunc(bnd.bridge.cfg.ResubscribeDelay, func() {
		if !bnd.alive() {
			return
		}
		bnd.logger().Info("resubscribing", "table", table)
		bnd.subscribe(table)
	})
}

func (bnd *binding) handleChange(table domain.Table, change domain.Change) {
	switch table {
	case domain.TableRooms:
		bnd.handleRoomChange(change)
	case domain.TableMembers:
		bnd.handleMemberChange(change)
	case domain.TableEvents:
		if change.Type != domain.ChangeInsert {
			return
		}
		event, err := decodeSyncEvent(change.New)
		if err != nil {
			bnd.logger().Warn("failed to decode sync event", "error", err)
			return
		}
		bnd.bridge.processor.Handle(event)
	}
}

func (bnd *binding) handleRoomChange(change domain.Change) {
	if change.Type == domain.ChangeDelete || len(change.New) == 0 {
		bnd.bridge.forceDisconnect(bnd.gen, "room was deleted")
		return
	}

	var mergeErr error
	room, ok := bnd.bridge.session.UpdateRoom(func(room domain.Room) domain.Room {
		merged, err := mergeRoom(room, change.New)
		if err != nil {
			mergeErr = err
			return room
		}
		return merged
	})
	if mergeErr != nil {
		bnd.logger().Warn("failed to merge room update", "error", mergeErr)
		return
	}
	if !ok {
		return
	}

	bnd.bridge.notifier.RoomUpdated.Publish(notify.RoomUpdated{Room: room})
	bnd.prefDebounce.Trigger()

	if !room.IsActive {
		bnd.bridge.forceDisconnect(bnd.gen, "room was closed")
	}
}

func (bnd *binding) savePreference() {
	if !bnd.alive() {
		return
	}

	room, ok := bnd.bridge.session.Room()
	if !ok {
		return
	}

	if err := bnd.bridge.resolver.SaveRoomState(room); err != nil {
		bnd.logger().Warn("failed to save stream preference", "error", err)
	}
}

func (bnd *binding) handleMemberChange(change domain.Change) {
	raw := change.New
	if change.Type == domain.ChangeDelete {
		raw = change.Old
	}

	// an undecodable row still triggers the refetch, it just is not announced
	member, err := decodeMember(raw)
	if err != nil {
		bnd.logger().Warn("failed to decode member change", "error", err)
	}

	bnd.mu.Lock()
	bnd.lastMemberEvent = time.Now()
	if err == nil {
		bnd.pending = append(bnd.pending, pendingChange{changeType: change.Type, member: member})
	}
	membersSub := bnd.subs[domain.TableMembers]
	bnd.mu.Unlock()

	if bnd.poller.Running() && membersSub != nil && membersSub.Status() == StatusSubscribed {
		bnd.logger().Info("member feed resumed, stopping polling")
		bnd.poller.Stop()
	}

	bnd.memberDebounce.Trigger()
}

func (bnd *binding) flushMemberChanges() {
	if !bnd.alive() {
		return
	}

	bnd.mu.Lock()
	pending := bnd.pending
	bnd.pending = nil
	bnd.mu.Unlock()

	ctx, cancel := context.WithTimeout(bnd.ctx, bnd.bridge.cfg.RequestTimeout)
	defer cancel()

	if _, err := bnd.refreshMembers(ctx, notify.SourceRealtime, pending); err != nil && !errors.Is(err, errStale) {
		bnd.logger().Info("failed to refresh members", "error", err)
	}
}

// refreshMembers replaces the member list with the registry's. With pending
// realtime changes it notifies those, otherwise it notifies the difference
// to the previous list. It reports whether the id list changed.
func (bnd *binding) refreshMembers(ctx context.Context, source notify.Source, pending []pendingChange) (bool, error) {
	bnd.refreshMu.Lock()
	defer bnd.refreshMu.Unlock()

	members, err := bnd.bridge.registry.ListMembers(ctx, bnd.roomID)
	if err != nil {
		return false, err
	}

	if !bnd.alive() {
		return false, errStale
	}

	previous := bnd.bridge.session.Members()
	if !bnd.bridge.session.SetMembers(members) {
		return false, errStale
	}

	changed := !slices.Equal(memberIDs(previous), memberIDs(members))
	notifier := bnd.bridge.notifier
	total := len(members)

	if source == notify.SourceRealtime {
		for _, p := range pending {
			event := notify.MemberChange{Member: p.member, Source: source, TotalMembers: total}
			switch p.changeType {
			case domain.ChangeInsert:
				notifier.MemberJoined.Publish(event)
			case domain.ChangeDelete:
				notifier.MemberLeft.Publish(event)
			case domain.ChangeUpdate:
				notifier.MemberUpdated.Publish(event)
			}
		}
		return changed, nil
	}

	joined, left, updated := diffMembers(previous, members)
	for _, m := range joined {
		notifier.MemberJoined.Publish(notify.MemberChange{Member: m, Source: source, TotalMembers: total})
	}
	for _, m := range left {
		notifier.MemberLeft.Publish(notify.MemberChange{Member: m, Source: source, TotalMembers: total})
	}
	for _, m := range updated {
		notifier.MemberUpdated.Publish(notify.MemberChange{Member: m, Source: source, TotalMembers: total})
	}

	return changed, nil
}

func (bnd *binding) poll(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, bnd.bridge.cfg.RequestTimeout)
	defer cancel()

	changed, err := bnd.refreshMembers(ctx, notify.SourcePolling, nil)
	if errors.Is(err, errStale) {
		return false, nil
	}
	if err == nil {
		bnd.mu.Lock()
		bnd.pollFailures = 0
		bnd.mu.Unlock()
		return changed, nil
	}

	if errors.Is(err, domain.ErrNotFound) {
		bnd.bridge.forceDisconnect(bnd.gen, "room no longer exists")
		return false, err
	}

	bnd.mu.Lock()
	bnd.pollFailures++
	failures := bnd.pollFailures
	bnd.mu.Unlock()

	bnd.logger().Info("member poll failed", "failures", failures, "error", err)
	if limit := bnd.bridge.cfg.MaxPollFailures; limit > 0 && failures >= limit {
		bnd.bridge.forceDisconnect(bnd.gen, "lost contact with the room")
	}

	return false, err
}

func (bnd *binding) watchLiveness() {
	ticker := time.NewTicker(bnd.bridge.cfg.LivenessCheck)
	defer ticker.Stop()

	for {
		select {
		case <-bnd.ctx.Done():
			return
		case <-ticker.C:
		}

		bnd.mu.Lock()
		silent := time.Since(bnd.lastMemberEvent)
		bnd.mu.Unlock()

		if silent >= bnd.bridge.cfg.LivenessWindow && !bnd.poller.Running() {
			bnd.logger().Info("member feed silent, polling members", "silent", silent)
			bnd.poller.Start(bnd.ctx)
		}
	}
}

func memberIDs(members []domain.Member) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	return ids
}

func diffMembers(previous, current []domain.Member) (joined, left, updated []domain.Member) {
	for _, m := range current {
		old, ok := domain.FindMember(previous, m.ID)
		switch {
		case !ok:
			joined = append(joined, m)
		case old.IsHost != m.IsHost || old.IsOnline != m.IsOnline || old.MemberName != m.MemberName:
			updated = append(updated, m)
		}
	}
	for _, m := range previous {
		if _, ok := domain.FindMember(current, m.ID); !ok {
			left = append(left, m)
		}
	}

	return joined, left, updated
}
