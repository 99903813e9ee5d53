package tx

import (
	"context"

	"github.com/pkg/errors"

	"github.com/availkit/go-node-client/codec"
	"github.com/availkit/go-node-client/entities"
)

// Builder assembles and signs extrinsics. The chain context it needs (runtime
// version, genesis hash) comes from the node client, which caches both.
type Builder struct {
	node NodeClient
}

func NewBuilder(node NodeClient) *Builder {
	return &Builder{node: node}
}

// Build combines a call, resolved options and a keypair into a submittable
// signed extrinsic. Assembly is deterministic; only the sr25519 signature
// differs between runs over identical inputs.
func (b *Builder) Build(ctx context.Context, call entities.Call, opts entities.ResolvedOptions, signer codec.Keypair) (entities.SignedTransaction, error) {
	version, err := b.node.RuntimeVersion(ctx)
	if err != nil {
		return entities.SignedTransaction{}, errors.Wrap(err, "fetching runtime version")
	}
	genesis, err := b.node.GenesisHash(ctx)
	if err != nil {
		return entities.SignedTransaction{}, errors.Wrap(err, "fetching genesis hash")
	}

	era := codec.MortalEra(opts.Mortality.Period, opts.Mortality.AnchorHeight)
	payload := codec.SignerPayload{
		Call:        call.Encode(),
		Era:         era,
		Nonce:       opts.Nonce,
		Tip:         opts.Tip,
		AppID:       opts.AppID,
		SpecVersion: version.SpecVersion,
		TxVersion:   version.TxVersion,
		GenesisHash: genesis,
		AnchorHash:  opts.Mortality.AnchorHash,
	}

	signature, err := signer.Sign(payload.SigningMessage())
	if err != nil {
		return entities.SignedTransaction{}, errors.Wrap(err, "signing payload")
	}

	account := signer.AccountID()
	encoded, err := codec.EncodeExtrinsic(account, signature, era, opts.Nonce, opts.Tip, opts.AppID, payload.Call)
	if err != nil {
		return entities.SignedTransaction{}, errors.Wrap(err, "encoding extrinsic")
	}

	return entities.SignedTransaction{
		Payload:   encoded,
		Signature: signature,
		Signer:    account,
		Options:   opts,
	}, nil
}
