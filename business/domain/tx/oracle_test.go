package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/availkit/go-node-client/entities"
)

func TestOracle_IncludedThenFinalized(t *testing.T) {
	node := newMockChain(1010, 1000)
	oracle := NewOracle(node)
	ref := entities.BlockRef{Hash: testBlockHash(1005, 0), Height: 1005}

	state, err := oracle.State(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, entities.BlockStateIncluded, state)

	node.advance(1010, 1005)
	state, err = oracle.State(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, entities.BlockStateFinalized, state)
}

func TestOracle_FinalityWinsAtBoundary(t *testing.T) {
	// The finalized head itself is Finalized, not Included.
	node := newMockChain(1010, 1005)
	oracle := NewOracle(node)

	state, err := oracle.State(context.Background(), entities.BlockRef{Hash: testBlockHash(1005, 0), Height: 1005})
	require.NoError(t, err)
	require.Equal(t, entities.BlockStateFinalized, state)
}

func TestOracle_BestHeadIsIncluded(t *testing.T) {
	node := newMockChain(1010, 1005)
	oracle := NewOracle(node)

	state, err := oracle.State(context.Background(), entities.BlockRef{Hash: testBlockHash(1010, 0), Height: 1010})
	require.NoError(t, err)
	require.Equal(t, entities.BlockStateIncluded, state)
}

func TestOracle_DiscardedAfterLosingForkRace(t *testing.T) {
	node := newMockChain(1010, 1005)
	oracle := NewOracle(node)

	// The canonical chain moves to a fork at 1002; the old block is now stale.
	node.reorg(1002, nil)
	state, err := oracle.State(context.Background(), entities.BlockRef{Hash: testBlockHash(1002, 0), Height: 1002})
	require.NoError(t, err)
	require.Equal(t, entities.BlockStateDiscarded, state)
}

func TestOracle_ForkAboveFinalizedIsStillIncluded(t *testing.T) {
	node := newMockChain(1010, 1005)
	oracle := NewOracle(node)

	// The best chain switches forks at 1008. Above the finalized height the
	// race is not over, so the displaced block has not lost yet.
	node.reorg(1008, nil)
	state, err := oracle.State(context.Background(), entities.BlockRef{Hash: testBlockHash(1008, 0), Height: 1008})
	require.NoError(t, err)
	require.Equal(t, entities.BlockStateIncluded, state)
}

func TestOracle_UnknownHeightDoesNotExist(t *testing.T) {
	node := newMockChain(1010, 1005)
	oracle := NewOracle(node)

	state, err := oracle.State(context.Background(), entities.BlockRef{Hash: testBlockHash(5000, 0), Height: 5000})
	require.NoError(t, err)
	require.Equal(t, entities.BlockStateDoesNotExist, state)
}
