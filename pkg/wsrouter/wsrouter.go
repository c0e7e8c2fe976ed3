package wsrouter

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[any]
}

type WSRouter struct {
	routes      map[string]route
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]route)}
}

func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

// Handle registers handler for messageType. The payload is decoded into T
// before the handler runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			if len(raw) == 0 {
				return payload, nil
			}
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
		handler: func(ctx context.Context, conn *websocket.Conn, payload any) error {
			return handler(ctx, conn, payload.(T))
		},
	}
}

// ServeMessage routes a single raw message.
func (r *WSRouter) ServeMessage(ctx context.Context, conn *websocket.Conn, data []byte) error {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	rt, ok := r.routes[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}

	payload, err := rt.decode(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}

	handler := rt.handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	return handler(context.WithValue(ctx, messageTypeKey, msg.Type), conn, payload)
}

// ServeConn reads messages until the connection fails or ctx is done.
// Handler errors are passed to onError and do not stop the loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn, onError func(error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if err := r.ServeMessage(ctx, conn, data); err != nil && onError != nil {
			onError(err)
		}
	}
}
