package tx

import (
	"context"

	"github.com/pkg/errors"

	"github.com/availkit/go-node-client/entities"
)

// Oracle classifies block references against the node's current view of the
// chain. The classification is point-in-time and never stored: a block that is
// Included now can be Discarded after a reorg or Finalized a moment later.
type Oracle struct {
	node NodeClient
}

func NewOracle(node NodeClient) *Oracle {
	return &Oracle{node: node}
}

// State reports where the referenced block stands. A block at or below the
// finalized height whose hash matches the canonical chain is Finalized, with
// finality taking priority over inclusion at the boundary. Any block above the
// finalized height is Included: forks there are still racing, so a hash
// mismatch is not yet a loss. A block at or below the finalized height whose
// canonical hash differs lost its fork race for good: Discarded. A height the
// chain has not reached is DoesNotExist.
func (o *Oracle) State(ctx context.Context, ref entities.BlockRef) (entities.BlockState, error) {
	finalizedHash, err := o.node.FinalizedHead(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "fetching finalized head")
	}
	if ref.Hash == finalizedHash {
		return entities.BlockStateFinalized, nil
	}

	bestHash, err := o.node.BlockHash(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "fetching best hash")
	}
	if bestHash != nil && ref.Hash == *bestHash {
		return entities.BlockStateIncluded, nil
	}

	canonical, err := o.node.BlockHash(ctx, &ref.Height)
	if err != nil {
		return 0, errors.Wrap(err, "fetching hash at height")
	}
	if canonical == nil {
		return entities.BlockStateDoesNotExist, nil
	}

	finalizedHeader, err := o.node.Header(ctx, &finalizedHash)
	if err != nil {
		return 0, errors.Wrap(err, "fetching finalized header")
	}
	if finalizedHeader == nil {
		return 0, entities.NewDecodingError("node returned no header for its finalized head")
	}
	if ref.Height > finalizedHeader.Number {
		return entities.BlockStateIncluded, nil
	}
	if *canonical != ref.Hash {
		return entities.BlockStateDiscarded, nil
	}
	return entities.BlockStateFinalized, nil
}
