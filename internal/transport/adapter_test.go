package transport

import (
	"context"
	"testing"
	"time"

	"github.com/rednetexplorer/core/internal/busproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_SendReceivesResponse(t *testing.T) {
	broker := NewDevBroker()
	busA := broker.NewNode(1)
	busB := broker.NewNode(2)

	codecA := busproto.NewCodec(1, busproto.StaticSecret{Key: []byte("k")})
	codecB := busproto.NewCodec(2, busproto.StaticSecret{Key: []byte("k")})

	adapterA := NewAdapter(busA, codecA, nil)
	adapterB := NewAdapter(busB, codecB, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapterA.Start(ctx)
	adapterB.Start(ctx)

	adapterB.OnReceive(func(source int, env busproto.Envelope) {
		if env.Type != busproto.TypePing {
			return
		}
		resp, err := codecB.CreateResponse(source, busproto.StatusOK, []byte("pong"), nil, nil, env.ID)
		require.NoError(t, err)
		_, _ = adapterB.Send(ctx, source, resp, SendOptions{ExpectsResponse: false})
	})

	req, err := codecA.Encode(busproto.TypePing, nil, intPtr(2))
	require.NoError(t, err)

	resp, err := adapterA.Send(ctx, 2, req, SendOptions{Timeout: time.Second, ExpectsResponse: true})
	require.NoError(t, err)

	var payload busproto.ResponsePayload
	require.NoError(t, busproto.DecodePayload(resp, &payload))
	assert.Equal(t, "pong", string(payload.Body))
}

func TestAdapter_SendTimesOutWithNoResponder(t *testing.T) {
	broker := NewDevBroker()
	busA := broker.NewNode(1)
	broker.NewNode(2) // present but never replies

	codecA := busproto.NewCodec(1, busproto.StaticSecret{Key: []byte("k")})
	adapterA := NewAdapter(busA, codecA, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapterA.Start(ctx)

	req, err := codecA.Encode(busproto.TypePing, nil, intPtr(2))
	require.NoError(t, err)

	_, err = adapterA.Send(ctx, 2, req, SendOptions{Timeout: 50 * time.Millisecond, Retries: 0, ExpectsResponse: true})
	assert.ErrorIs(t, err, ErrTimeout)
}

func intPtr(v int) *int { return &v }
