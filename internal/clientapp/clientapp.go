// Package clientapp runs the terminal watch party client: it connects to a
// room and turns stdin commands into sync events while printing room
// notifications as JSON lines.
package clientapp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/sharetube/watchparty/internal/app"
	"github.com/sharetube/watchparty/internal/client/notify"
	"github.com/sharetube/watchparty/internal/client/watchparty"
	"github.com/sharetube/watchparty/internal/domain"
)

type ClientConfig struct {
	ServerURL     string        `json:"server_url"`
	StateDir      string        `json:"state_dir"`
	LogLevel      string        `json:"log_level"`
	MemberName    string        `json:"member_name"`
	RoomCode      string        `json:"room_code"`
	Create        bool          `json:"create"`
	MediaID       string        `json:"media_id"`
	MediaType     string        `json:"media_type"`
	ProviderIndex int           `json:"provider_index"`
	Season        int           `json:"season"`
	Episode       int           `json:"episode"`
	ShareBase     string        `json:"share_base"`
	SendThrottle  time.Duration `json:"send_throttle"`
}

func (cfg *ClientConfig) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	if cfg.ServerURL == "" {
		return errors.New("server url is required")
	}
	if cfg.Create && cfg.RoomCode != "" {
		return errors.New("create and room code are mutually exclusive")
	}
	if (cfg.Create || cfg.RoomCode != "") && strings.TrimSpace(cfg.MemberName) == "" {
		return errors.New("member name is required to create or join a room")
	}
	if cfg.Create && cfg.MediaID == "" {
		return errors.New("media id is required to create a room")
	}
	if cfg.SendThrottle < 0 {
		return errors.New("send throttle must not be negative")
	}
	return nil
}

// Run connects according to cfg and serves commands from in until it is
// exhausted, the user leaves or ctx is done.
func Run(ctx context.Context, cfg *ClientConfig, in io.Reader, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := app.NewWriterLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	clientCfg := watchparty.DefaultConfig()
	clientCfg.ServerURL = cfg.ServerURL
	clientCfg.StateDir = cfg.StateDir
	clientCfg.SendThrottle = cfg.SendThrottle

	client, err := watchparty.New(clientCfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := newPrinter(out)
	unsubscribe := subscribeAll(client.Notifier, p)
	defer unsubscribe()

	if err := connect(ctx, client, cfg, p); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			done, err := execute(ctx, client, cfg, strings.Fields(line), p)
			if err != nil {
				p.print("error", map[string]string{"error": err.Error()})
			}
			if done {
				return nil
			}
		}
	}
}

func connect(ctx context.Context, client *watchparty.Client, cfg *ClientConfig, p *printer) error {
	switch {
	case cfg.Create:
		params := watchparty.CreateRoomParams{
			HostName:      cfg.MemberName,
			MediaID:       cfg.MediaID,
			MediaType:     domain.MediaType(cfg.MediaType),
			ProviderIndex: cfg.ProviderIndex,
		}
		if params.MediaType == domain.MediaTypeTV {
			params.Season = domain.Int(max(1, cfg.Season))
			params.Episode = domain.Int(max(1, cfg.Episode))
		}
		resp, err := client.CreateRoom(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		p.print("room-created", resp)

	case cfg.RoomCode != "":
		code := cfg.RoomCode
		if fromLink, ok := watchparty.RoomCodeFromLink(code); ok {
			code = fromLink
		}
		resp, err := client.JoinRoom(ctx, code, cfg.MemberName)
		if err != nil {
			return fmt.Errorf("failed to join room: %w", err)
		}
		p.print("room-joined", resp)

	default:
		if err := client.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to restore session: %w", err)
		}
		if !client.State().Connected() {
			return errors.New("no session to restore, pass a room code or create a room")
		}
		p.print("session-restored", client.State())
	}

	if cfg.ShareBase != "" {
		if link, err := client.ShareLink(cfg.ShareBase); err == nil {
			p.print("share-link", map[string]string{"link": link})
		}
	}

	return nil
}

// execute runs one command line. It reports true when the session ended.
func execute(ctx context.Context, client *watchparty.Client, cfg *ClientConfig, args []string, p *printer) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}

	floatArg := func(i int) (*float64, error) {
		if len(args) <= i {
			return nil, nil
		}
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", domain.ErrValidation, args[i])
		}
		return &v, nil
	}
	intArg := func(i int) (int, error) {
		if len(args) <= i {
			return 0, fmt.Errorf("%w: %s needs %d arguments", domain.ErrValidation, args[0], i)
		}
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", domain.ErrValidation, args[i])
		}
		return v, nil
	}
	send := func(eventType domain.EventType, data domain.EventData) error {
		resp, err := client.Processor.SendSyncEvent(ctx, eventType, data)
		if err != nil {
			return err
		}
		p.print("sent", map[string]any{"event_type": eventType, "event_id": resp.EventID})
		return nil
	}

	switch args[0] {
	case "play", "pause", "seek", "sync":
		currentTime, err := floatArg(1)
		if err != nil {
			return false, err
		}
		eventType := domain.EventType(args[0])
		if args[0] == "sync" {
			eventType = domain.EventTypeForceSync
		}
		return false, send(eventType, domain.EventData{CurrentTime: currentTime})

	case "server":
		index, err := intArg(1)
		if err != nil {
			return false, err
		}
		return false, send(domain.EventTypeServerChange, domain.EventData{ServerIndex: domain.Int(index)})

	case "episode":
		season, err := intArg(1)
		if err != nil {
			return false, err
		}
		episode, err := intArg(2)
		if err != nil {
			return false, err
		}
		return false, send(domain.EventTypeEpisodeChange, domain.EventData{Season: domain.Int(season), Episode: domain.Int(episode)})

	case "url":
		state := client.State()
		if !state.Connected() {
			return false, domain.ErrNotConnected
		}
		p.print("url", map[string]string{"url": client.Resolver.RoomURL(*state.Room, nil)})
		return false, nil

	case "state":
		p.print("state", client.State())
		return false, nil

	case "refresh":
		state, err := client.GetRoomData(ctx)
		if err != nil {
			return false, err
		}
		p.print("state", state)
		return false, nil

	case "link":
		link, err := client.ShareLink(cfg.ShareBase)
		if err != nil {
			return false, err
		}
		p.print("share-link", map[string]string{"link": link})
		return false, nil

	case "leave":
		resp, err := client.LeaveRoom(ctx)
		if err != nil {
			return true, err
		}
		p.print("left", resp)
		return true, nil

	case "quit":
		return true, nil

	default:
		return false, fmt.Errorf("%w: unknown command %q", domain.ErrValidation, args[0])
	}
}

type printer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newPrinter(out io.Writer) *printer {
	return &printer{enc: json.NewEncoder(out)}
}

func (p *printer) print(kind string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enc.Encode(map[string]any{"kind": kind, "payload": payload}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to print:", err)
	}
}

func subscribeAll(n *notify.Notifier, p *printer) func() {
	unsubscribes := []func(){
		n.Play.Subscribe(func(v notify.Playback) { p.print("play", v) }),
		n.Pause.Subscribe(func(v notify.Playback) { p.print("pause", v) }),
		n.Seek.Subscribe(func(v notify.Playback) { p.print("seek", v) }),
		n.ServerChange.Subscribe(func(v notify.ServerChange) { p.print("server-change", v) }),
		n.EpisodeChange.Subscribe(func(v notify.EpisodeChange) { p.print("episode-change", v) }),
		n.ForceSync.Subscribe(func(v notify.ForceSync) { p.print("force-sync", v) }),
		n.MemberJoined.Subscribe(func(v notify.MemberChange) { p.print("member-joined", v) }),
		n.MemberLeft.Subscribe(func(v notify.MemberChange) { p.print("member-left", v) }),
		n.MemberUpdated.Subscribe(func(v notify.MemberChange) { p.print("member-updated", v) }),
		n.RoomUpdated.Subscribe(func(v notify.RoomUpdated) { p.print("room-updated", v) }),
		n.MemberTimestamp.Subscribe(func(v notify.MemberTimestamp) { p.print("member-timestamp", v) }),
		n.Disconnected.Subscribe(func(v notify.Disconnected) { p.print("disconnected", v) }),
	}

	return func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
}
