package wsrouter

import (
	"context"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingInput struct {
	Seq int `json:"seq"`
}

func TestServeMessageRoutesTypedPayload(t *testing.T) {
	r := New()

	var got pingInput
	var seenType string
	Handle(r, "PING", func(ctx context.Context, conn *websocket.Conn, input pingInput) error {
		got = input
		seenType = GetMessageTypeFromCtx(ctx)
		return nil
	})

	var calls int
	r.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			calls++
			return next(ctx, conn, payload)
		}
	})

	err := r.ServeMessage(context.Background(), nil, []byte(`{"type":"PING","payload":{"seq":7}}`))
	require.NoError(t, err)
	assert.Equal(t, 7, got.Seq)
	assert.Equal(t, "PING", seenType)
	assert.Equal(t, 1, calls)
}

func TestServeMessageEmptyPayload(t *testing.T) {
	r := New()
	called := false
	Handle(r, "ALIVE", func(ctx context.Context, conn *websocket.Conn, input struct{}) error {
		called = true
		return nil
	})

	require.NoError(t, r.ServeMessage(context.Background(), nil, []byte(`{"type":"ALIVE"}`)))
	assert.True(t, called)
}

func TestServeMessageUnknownType(t *testing.T) {
	r := New()
	err := r.ServeMessage(context.Background(), nil, []byte(`{"type":"NOPE"}`))
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}
