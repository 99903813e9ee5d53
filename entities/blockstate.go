package entities

// BlockState is a derived, point-in-time classification of a block reference.
// It is always recomputed from chain state, never stored.
type BlockState uint8

const (
	// BlockStateIncluded: the block is on a known chain but not yet finalized.
	BlockStateIncluded BlockState = iota
	// BlockStateFinalized: the block is an ancestor of (or is) the finalized head.
	BlockStateFinalized
	// BlockStateDiscarded: the block exists but lost a fork race; it is older
	// than the finalized height and not on the finalized chain.
	BlockStateDiscarded
	// BlockStateDoesNotExist: the node knows no block with that reference.
	BlockStateDoesNotExist
)

func (s BlockState) String() string {
	switch s {
	case BlockStateIncluded:
		return "Included"
	case BlockStateFinalized:
		return "Finalized"
	case BlockStateDiscarded:
		return "Discarded"
	case BlockStateDoesNotExist:
		return "DoesNotExist"
	default:
		return "Unknown"
	}
}
