package tx

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/availkit/go-node-client/codec"
	"github.com/availkit/go-node-client/entities"
)

// ReceiptResolver reconciles a submitted transaction against the chain. Every
// call is a fresh, idempotent scan over the mortality window; nothing is cached
// between calls, so concurrent resolutions never share state.
//
// Receipts obtained from the best chain can go stale when the block they
// reference is reorged out. The resolver does not invalidate previously
// returned receipts; callers watching the best chain re-scan or check the
// block's state when they need certainty.
type ReceiptResolver struct {
	node   NodeClient
	waiter BlockWaiter
	log    *zap.SugaredLogger
}

func NewReceiptResolver(node NodeClient, waiter BlockWaiter, logger *zap.SugaredLogger) *ReceiptResolver {
	return &ReceiptResolver{node: node, waiter: waiter, log: logger}
}

// signerMatch identifies a transaction when hash comparison fails, e.g. after
// the node re-encoded it. An extrinsic signed by the same account with the same
// nonce occupies the transaction's slot and settles its fate either way.
type signerMatch struct {
	account entities.AccountID
	nonce   uint32
}

// Receipt scans the transaction's mortality window [anchor, anchor+period) in
// strictly increasing height order and returns the earliest match. A nil
// receipt with a nil error means the window passed without a match: the
// transaction was dropped or replaced. Transport errors abort the scan without
// advancing; they are never reported as absence.
func (r *ReceiptResolver) Receipt(ctx context.Context, sub entities.SubmittedTransaction, useBestChain bool) (*entities.TransactionReceipt, error) {
	start := sub.Options.Mortality.AnchorHeight
	end := sub.Options.Mortality.EndHeight()
	return r.scan(ctx, start, end, useBestChain, sub.TxHash, &signerMatch{account: sub.Account, nonce: sub.Options.Nonce})
}

// FromRange scans an explicit height range [start, end) for a transaction hash.
// Unlike Receipt it has no signer information, so only exact hash matches
// count.
func (r *ReceiptResolver) FromRange(ctx context.Context, txHash entities.Hash, start, end uint32, useBestChain bool) (*entities.TransactionReceipt, error) {
	if start > end {
		return nil, entities.NewUserInputError(fmt.Sprintf("scan range start %d is past end %d", start, end))
	}
	return r.scan(ctx, start, end, useBestChain, txHash, nil)
}

func (r *ReceiptResolver) scan(ctx context.Context, start, end uint32, useBestChain bool, txHash entities.Hash, fallback *signerMatch) (*entities.TransactionReceipt, error) {
	finalized := !useBestChain
	for height := start; height < end; height++ {
		head, err := r.waiter.Wait(ctx, height, finalized)
		if err != nil {
			return nil, err
		}
		block, err := r.blockAt(ctx, height, finalized, head)
		if err != nil {
			return nil, err
		}
		if ref := r.findInBlock(block, txHash, fallback); ref != nil {
			r.log.Debugw("found transaction", "txHash", txHash, "block", block.Ref.Hash, "height", height, "index", ref.Index)
			return &entities.TransactionReceipt{Block: block.Ref, Tx: *ref}, nil
		}
	}
	r.log.Debugw("transaction not found in scan range", "txHash", txHash, "start", start, "end", end)
	return nil, nil
}

// blockAt fetches the block at a height the head has already passed. The node
// can still briefly answer with nothing when the best chain reorgs under the
// scan, in which case the resolver waits for the next head and asks again
// rather than skipping the height.
func (r *ReceiptResolver) blockAt(ctx context.Context, height uint32, finalized bool, head uint32) (*entities.Block, error) {
	for {
		hash, err := r.node.BlockHash(ctx, &height)
		if err != nil {
			return nil, err
		}
		if hash != nil {
			block, err := r.node.Block(ctx, *hash)
			if err != nil {
				return nil, err
			}
			if block != nil {
				return block, nil
			}
		}
		head, err = r.waiter.Wait(ctx, head+1, finalized)
		if err != nil {
			return nil, err
		}
	}
}

func (r *ReceiptResolver) findInBlock(block *entities.Block, txHash entities.Hash, fallback *signerMatch) *entities.TxRef {
	var fallbackRef *entities.TxRef
	for i, ext := range block.Extrinsics {
		hash := codec.TxHash(ext)
		if hash == txHash {
			return &entities.TxRef{Hash: hash, Index: uint32(i)}
		}
		if fallback == nil || fallbackRef != nil {
			continue
		}
		signer, err := codec.ParseExtrinsicSigner(ext)
		if err != nil {
			// Foreign extrinsics this library cannot parse must not fail
			// somebody else's receipt scan.
			r.log.Debugw("skipping unparseable extrinsic", "block", block.Ref.Hash, "index", i, "error", err)
			continue
		}
		if signer != nil && signer.Account == fallback.account && signer.Nonce == fallback.nonce {
			fallbackRef = &entities.TxRef{Hash: hash, Index: uint32(i)}
		}
	}
	return fallbackRef
}
