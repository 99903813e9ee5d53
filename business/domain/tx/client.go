// Package tx implements the transaction lifecycle: resolving signing options,
// building and signing extrinsics, broadcasting them, and reconciling their
// on-chain fate through windowed receipt scans.
package tx

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/availkit/go-node-client/codec"
	"github.com/availkit/go-node-client/entities"
)

// Client is the package facade, wiring the lifecycle stages onto a single node
// client and block waiter. All methods are safe for concurrent use; the only
// shared state lives in the node client's caches.
type Client struct {
	resolver  *Resolver
	builder   *Builder
	submitter *Submitter
	receipts  *ReceiptResolver
	oracle    *Oracle
}

func NewClient(node NodeClient, waiter BlockWaiter, logger *zap.SugaredLogger) *Client {
	return &Client{
		resolver:  NewResolver(node, logger),
		builder:   NewBuilder(node),
		submitter: NewSubmitter(node, logger),
		receipts:  NewReceiptResolver(node, waiter, logger),
		oracle:    NewOracle(node),
	}
}

// ResolveOptions fills the chain-derived defaults of partial options.
func (c *Client) ResolveOptions(ctx context.Context, opts entities.Options, account entities.AccountID) (entities.ResolvedOptions, error) {
	return c.resolver.Resolve(ctx, opts, account)
}

// BuildAndSign assembles a signed extrinsic from a call, resolved options and a
// keypair.
func (c *Client) BuildAndSign(ctx context.Context, call entities.Call, opts entities.ResolvedOptions, signer codec.Keypair) (entities.SignedTransaction, error) {
	return c.builder.Build(ctx, call, opts, signer)
}

// Submit broadcasts a signed extrinsic exactly once.
func (c *Client) Submit(ctx context.Context, signed entities.SignedTransaction) (entities.SubmittedTransaction, error) {
	return c.submitter.Submit(ctx, signed)
}

// SubmitCall resolves, builds, signs and submits in one step.
func (c *Client) SubmitCall(ctx context.Context, call entities.Call, opts entities.Options, signer codec.Keypair) (entities.SubmittedTransaction, error) {
	resolved, err := c.resolver.Resolve(ctx, opts, signer.AccountID())
	if err != nil {
		return entities.SubmittedTransaction{}, errors.Wrap(err, "resolving options")
	}
	signed, err := c.builder.Build(ctx, call, resolved, signer)
	if err != nil {
		return entities.SubmittedTransaction{}, errors.Wrap(err, "building transaction")
	}
	return c.submitter.Submit(ctx, signed)
}

// Receipt scans the transaction's mortality window for its inclusion. A nil
// receipt with nil error means the window expired without a match.
func (c *Client) Receipt(ctx context.Context, sub entities.SubmittedTransaction, useBestChain bool) (*entities.TransactionReceipt, error) {
	return c.receipts.Receipt(ctx, sub, useBestChain)
}

// ReceiptFromRange scans an explicit height range for a transaction hash.
func (c *Client) ReceiptFromRange(ctx context.Context, txHash entities.Hash, start, end uint32, useBestChain bool) (*entities.TransactionReceipt, error) {
	return c.receipts.FromRange(ctx, txHash, start, end, useBestChain)
}

// BlockState classifies a block reference against the node's current chain
// view.
func (c *Client) BlockState(ctx context.Context, ref entities.BlockRef) (entities.BlockState, error) {
	return c.oracle.State(ctx, ref)
}
