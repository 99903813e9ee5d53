package tx

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/availkit/go-node-client/codec"
	"github.com/availkit/go-node-client/entities"
)

// GenericSS58Prefix is the network-agnostic ss58 prefix used when formatting
// accounts for RPC calls that take addresses.
const GenericSS58Prefix = 42

// Resolver fills in the chain-derived defaults of transaction options.
type Resolver struct {
	node NodeClient
	log  *zap.SugaredLogger
}

func NewResolver(node NodeClient, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{node: node, log: logger}
}

// Resolve turns partial options into a fully determined set. Nonce defaults to
// the account's next index as seen by the node (best block plus transaction
// pool); under concurrent submissions from the same account that read can race,
// and callers needing strict ordering must supply nonces themselves. Mortality
// defaults to a 32 block window anchored at the finalized head; caller periods
// are rounded up to a power of two and clamped to the runtime's range.
func (r *Resolver) Resolve(ctx context.Context, opts entities.Options, account entities.AccountID) (entities.ResolvedOptions, error) {
	var resolved entities.ResolvedOptions
	resolved.AppID = opts.AppID
	resolved.Tip = opts.Tip

	if opts.Nonce != nil {
		resolved.Nonce = *opts.Nonce
	} else {
		nonce, err := r.node.AccountNextIndex(ctx, codec.SS58Address(account, GenericSS58Prefix))
		if err != nil {
			return entities.ResolvedOptions{}, errors.Wrap(err, "fetching account nonce")
		}
		resolved.Nonce = nonce
	}

	mortality, err := r.resolveMortality(ctx, opts.Mortality)
	if err != nil {
		return entities.ResolvedOptions{}, err
	}
	resolved.Mortality = mortality

	r.log.Debugw("resolved transaction options",
		"account", account,
		"nonce", resolved.Nonce,
		"appId", resolved.AppID,
		"anchor", resolved.Mortality.AnchorHash,
		"anchorHeight", resolved.Mortality.AnchorHeight,
		"period", resolved.Mortality.Period)
	return resolved, nil
}

func (r *Resolver) resolveMortality(ctx context.Context, m *entities.Mortality) (entities.ResolvedMortality, error) {
	period := uint64(entities.DefaultMortalityPeriod)
	var anchor entities.Hash

	if m != nil {
		if m.Period != 0 {
			period = entities.NormalizePeriod(m.Period)
		}
		anchor = m.AnchorHash
	}

	callerAnchor := !anchor.IsZero()
	if !callerAnchor {
		finalized, err := r.node.FinalizedHead(ctx)
		if err != nil {
			return entities.ResolvedMortality{}, errors.Wrap(err, "fetching finalized head")
		}
		anchor = finalized
	}

	header, err := r.node.Header(ctx, &anchor)
	if err != nil {
		return entities.ResolvedMortality{}, errors.Wrap(err, "fetching anchor header")
	}
	if header == nil {
		if callerAnchor {
			return entities.ResolvedMortality{}, entities.NewUserInputError(fmt.Sprintf("anchor block %s is unknown to the node", anchor))
		}
		return entities.ResolvedMortality{}, entities.NewDecodingError(fmt.Sprintf("node returned no header for finalized head %s", anchor))
	}

	return entities.ResolvedMortality{
		Period:       period,
		AnchorHash:   anchor,
		AnchorHeight: header.Number,
	}, nil
}
