// Package registry is the HTTP client of the remote room registry.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sharetube/watchparty/internal/domain"
	gobreaker "github.com/sony/gobreaker/v2"
)

const apiPrefix = "/api/v1"

type Config struct {
	BaseURL string
	Timeout time.Duration
	// FailureThreshold is the number of consecutive transport failures that
	// open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url: %w", domain.ErrValidation, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: base url must be http or https", domain.ErrValidation)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "room-registry",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// domain errors are answers, not outages
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	c.logger.DebugContext(ctx, "called", "method", method, "path", path)

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %w", domain.ErrTransport, err)
		}
		c.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if dst != nil && len(data) > 0 {
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("%w: decode response: %w", domain.ErrTransport, err)
		}
	}

	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request: %w", domain.ErrValidation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+apiPrefix+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrTransport, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return nil, fmt.Errorf("%w: decode envelope: %w", domain.ErrTransport, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		status := resp.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		return nil, &APIError{Status: status, Message: env.Error}
	}

	return env.Data, nil
}

func (c *Client) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.CreateRoomResponse, error) {
	var resp domain.CreateRoomResponse
	err := c.do(ctx, http.MethodPost, "/rooms", req, &resp)
	return resp, err
}

func (c *Client) JoinRoom(ctx context.Context, req domain.JoinRoomRequest) (domain.JoinRoomResponse, error) {
	var resp domain.JoinRoomResponse
	err := c.do(ctx, http.MethodPost, "/rooms/join", req, &resp)
	return resp, err
}

func (c *Client) GetRoom(ctx context.Context, roomCode string) (domain.RoomState, error) {
	var resp domain.RoomState
	err := c.do(ctx, http.MethodGet, "/rooms/code/"+url.PathEscape(roomCode), nil, &resp)
	return resp, err
}

func (c *Client) LeaveRoom(ctx context.Context, roomID, memberID string) (domain.LeaveRoomResponse, error) {
	var resp domain.LeaveRoomResponse
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/leave", domain.LeaveRoomRequest{MemberID: memberID}, &resp)
	return resp, err
}

func (c *Client) SyncEvent(ctx context.Context, roomID string, req domain.SyncEventRequest) (domain.SyncEventResponse, error) {
	var resp domain.SyncEventResponse
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/events", req, &resp)
	return resp, err
}

func (c *Client) ListMembers(ctx context.Context, roomID string) ([]domain.Member, error) {
	var resp []domain.Member
	err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID)+"/members", nil, &resp)
	return resp, err
}

// RealtimeURL returns the websocket address of the change feed of table.
func (c *Client) RealtimeURL(roomID string, table domain.Table, memberID string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + apiPrefix + "/realtime/" + url.PathEscape(roomID)

	query := url.Values{"table": {string(table)}}
	if memberID != "" {
		query.Set("member-id", memberID)
	}
	u.RawQuery = query.Encode()

	return u.String()
}
