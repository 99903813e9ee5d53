package tx

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/availkit/go-node-client/codec"
	"github.com/availkit/go-node-client/entities"
)

// Submitter broadcasts signed extrinsics. Exactly one broadcast per call:
// runtime rejections fail identically on identical bytes, so recovery means
// rebuilding with fresh options, never resubmitting here.
type Submitter struct {
	node NodeClient
	log  *zap.SugaredLogger
}

func NewSubmitter(node NodeClient, logger *zap.SugaredLogger) *Submitter {
	return &Submitter{node: node, log: logger}
}

// Submit sends the extrinsic and returns the handle used for receipt
// resolution. The hash the node echoes back is checked against the locally
// computed one so that a handle never points at a different transaction.
func (s *Submitter) Submit(ctx context.Context, signed entities.SignedTransaction) (entities.SubmittedTransaction, error) {
	localHash := codec.TxHash(signed.Payload)

	nodeHash, err := s.node.SubmitExtrinsic(ctx, signed.Payload)
	if err != nil {
		return entities.SubmittedTransaction{}, err
	}
	if nodeHash != localHash {
		return entities.SubmittedTransaction{}, entities.NewDecodingError(
			fmt.Sprintf("node reported tx hash %s for extrinsic hashing to %s", nodeHash, localHash))
	}

	s.log.Infow("submitted transaction",
		"txHash", localHash,
		"account", signed.Signer,
		"nonce", signed.Options.Nonce,
		"anchorHeight", signed.Options.Mortality.AnchorHeight,
		"period", signed.Options.Mortality.Period)

	return entities.SubmittedTransaction{
		TxHash:  localHash,
		Account: signed.Signer,
		Options: signed.Options,
	}, nil
}
