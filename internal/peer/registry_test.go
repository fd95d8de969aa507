package peer

import (
	"context"
	"testing"
	"time"

	"github.com/rednetexplorer/core/internal/busproto"
	"github.com/rednetexplorer/core/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLinkedAdapters(t *testing.T) (*transport.Adapter, *transport.Adapter, context.Context) {
	t.Helper()
	broker := transport.NewDevBroker()
	busA := broker.NewNode(1)
	busB := broker.NewNode(2)

	codecA := busproto.NewCodec(1, busproto.StaticSecret{Key: []byte("k")})
	codecB := busproto.NewCodec(2, busproto.StaticSecret{Key: []byte("k")})

	adapterA := transport.NewAdapter(busA, codecA, nil)
	adapterB := transport.NewAdapter(busB, codecB, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	adapterA.Start(ctx)
	adapterB.Start(ctx)

	adapterB.OnReceive(func(source int, env busproto.Envelope) {
		if env.Type != busproto.TypePing {
			return
		}
		resp, err := codecB.CreateResponse(source, busproto.StatusOK, nil, nil, nil, env.ID)
		require.NoError(t, err)
		_, _ = adapterB.Send(ctx, source, resp, transport.SendOptions{ExpectsResponse: false})
	})

	return adapterA, adapterB, ctx
}

func TestRegistry_GetOrOpenTransitionsToOpen(t *testing.T) {
	adapterA, _, ctx := newLinkedAdapters(t)
	codecA := busproto.NewCodec(1, busproto.StaticSecret{Key: []byte("k")})
	reg := NewRegistry(adapterA, codecA, nil)

	conn, err := reg.GetOrOpen(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, conn.State)
}

func TestRegistry_SweepEvictsStaleDescriptor(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	reg.FreshnessWindow = time.Millisecond

	reg.OnPeerSeen(Descriptor{NodeID: 99, Class: ClassClient})
	time.Sleep(5 * time.Millisecond)
	reg.Sweep()

	_, ok := reg.Descriptor(99)
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassClient, classify(false, false))
	assert.Equal(t, ClassServer, classify(true, false))
	assert.Equal(t, ClassDNS, classify(false, true))
	assert.Equal(t, ClassHybrid, classify(true, true))
}
