package tx

import (
	"context"

	"github.com/availkit/go-node-client/entities"
)

// NodeClient is the slice of the node's RPC surface this package consumes.
// Retry behaviour is the implementation's concern; methods here may block on
// network I/O and must honour ctx.
type NodeClient interface {
	// BlockHash returns the best-chain hash at the given height, the best head
	// hash when height is nil, and nil when the block does not exist yet.
	BlockHash(ctx context.Context, height *uint32) (*entities.Hash, error)
	// FinalizedHead returns the hash of the latest finalized block.
	FinalizedHead(ctx context.Context) (entities.Hash, error)
	// Header fetches a header by hash (best head when nil); nil when unknown.
	Header(ctx context.Context, hash *entities.Hash) (*entities.Header, error)
	// Block fetches a block body by hash; nil when unknown.
	Block(ctx context.Context, hash entities.Hash) (*entities.Block, error)
	// AccountNextIndex returns the account's next usable nonce, transaction
	// pool included.
	AccountNextIndex(ctx context.Context, address string) (uint32, error)
	// RuntimeVersion returns the runtime version identifiers signed into every
	// transaction.
	RuntimeVersion(ctx context.Context) (entities.RuntimeVersion, error)
	// GenesisHash returns the hash of block zero.
	GenesisHash(ctx context.Context) (entities.Hash, error)
	// SubmitExtrinsic broadcasts an encoded extrinsic exactly once and returns
	// the hash reported by the node.
	SubmitExtrinsic(ctx context.Context, extrinsic []byte) (entities.Hash, error)
}
