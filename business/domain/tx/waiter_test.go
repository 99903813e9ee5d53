package tx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/availkit/go-node-client/entities"
)

func TestPollWaiter_ReturnsWhenHeightReached(t *testing.T) {
	node := newMockChain(1005, 1002)
	waiter := testWaiter(node)

	head, err := waiter.Wait(context.Background(), 1003, false)
	require.NoError(t, err)
	require.Equal(t, uint32(1005), head)

	// Finalized chain lags behind.
	done := make(chan struct{})
	go func() {
		defer close(done)
		head, err = waiter.Wait(context.Background(), 1003, true)
	}()
	time.Sleep(10 * time.Millisecond)
	node.advance(1006, 1003)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not finish")
	}
	require.NoError(t, err)
	require.Equal(t, uint32(1003), head)
}

type mockSubs struct {
	heads      chan entities.Header
	err        error
	unsubbed   bool
	subscribed bool
}

func (m *mockSubs) SubscribeHeads(_ context.Context, _ bool) (<-chan entities.Header, func(), error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	m.subscribed = true
	return m.heads, func() { m.unsubbed = true }, nil
}

func TestSubWaiter_CurrentHeadShortCircuits(t *testing.T) {
	node := newMockChain(1005, 1005)
	subs := &mockSubs{heads: make(chan entities.Header)} // unbuffered, never written

	waiter := NewSubWaiter(node, subs, testLogger())
	head, err := waiter.Wait(context.Background(), 1003, true)
	require.NoError(t, err)
	require.Equal(t, uint32(1005), head)
	require.True(t, subs.unsubbed)
}

func TestSubWaiter_ConsumesStream(t *testing.T) {
	node := newMockChain(1005, 1005)
	subs := &mockSubs{heads: make(chan entities.Header, 3)}
	subs.heads <- entities.Header{Number: 1006}
	subs.heads <- entities.Header{Number: 1007}
	subs.heads <- entities.Header{Number: 1008}

	waiter := NewSubWaiter(node, subs, testLogger())
	head, err := waiter.Wait(context.Background(), 1008, true)
	require.NoError(t, err)
	require.Equal(t, uint32(1008), head)
}

func TestSubWaiter_ClosedStreamIsTransportError(t *testing.T) {
	node := newMockChain(1005, 1005)
	subs := &mockSubs{heads: make(chan entities.Header)}
	close(subs.heads)

	waiter := NewSubWaiter(node, subs, testLogger())
	_, err := waiter.Wait(context.Background(), 2000, true)
	require.Error(t, err)
	require.True(t, entities.IsRetryable(err))
}

func TestSubWaiter_SubscribeErrorSurfaces(t *testing.T) {
	node := newMockChain(1005, 1005)
	subs := &mockSubs{err: entities.NewUnsupportedOperation("chain_subscribeFinalizedHeads")}

	waiter := NewSubWaiter(node, subs, testLogger())
	_, err := waiter.Wait(context.Background(), 1003, true)
	require.Error(t, err)
	require.True(t, entities.IsUnsupported(err))
}
