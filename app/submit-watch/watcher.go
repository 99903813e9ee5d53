package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/availkit/go-node-client/codec"
	"github.com/availkit/go-node-client/entities"
	"github.com/availkit/go-node-client/external/elastic"
	"github.com/availkit/go-node-client/metrics"
)

type TxClient interface {
	SubmitCall(ctx context.Context, call entities.Call, opts entities.Options, signer codec.Keypair) (entities.SubmittedTransaction, error)
	Receipt(ctx context.Context, sub entities.SubmittedTransaction, useBestChain bool) (*entities.TransactionReceipt, error)
}

type Journal interface {
	SaveSubmission(sub entities.SubmittedTransaction) error
	GetPendingSubmissions() ([]entities.SubmittedTransaction, error)
	SaveReceipt(txHash entities.Hash, receipt *entities.TransactionReceipt) error
}

type ReceiptIndexer interface {
	PublishReceipts(ctx context.Context, docs []elastic.ReceiptDocument) error
}

// Watcher submits data blobs and owes every journaled submission a resolution:
// either a receipt or a confirmed mortality expiry. Submissions are journaled
// before resolution starts so a crash never orphans a broadcast transaction.
type Watcher struct {
	client         TxClient
	journal        Journal
	indexer        ReceiptIndexer // optional
	watcherMetrics *metrics.Metrics
	signer         codec.Keypair
	appID          uint32
	log            *zap.SugaredLogger
}

func NewWatcher(client TxClient, journal Journal, indexer ReceiptIndexer, m *metrics.Metrics, signer codec.Keypair, appID uint32, logger *zap.SugaredLogger) *Watcher {
	return &Watcher{
		client:         client,
		journal:        journal,
		indexer:        indexer,
		watcherMetrics: m,
		signer:         signer,
		appID:          appID,
		log:            logger,
	}
}

// SubmitData broadcasts a data availability blob and journals the handle.
func (w *Watcher) SubmitData(ctx context.Context, palletID, variantID uint8, blob []byte) (entities.SubmittedTransaction, error) {
	call := entities.Call{
		PalletID:  palletID,
		VariantID: variantID,
		Args:      append(codec.AppendCompact(nil, uint64(len(blob))), blob...),
	}

	sub, err := w.client.SubmitCall(ctx, call, entities.Options{AppID: w.appID}, w.signer)
	if err != nil {
		w.watcherMetrics.IncSubmitError()
		return entities.SubmittedTransaction{}, errors.Wrap(err, "submitting data")
	}
	w.watcherMetrics.IncSubmitted()

	if err := w.journal.SaveSubmission(sub); err != nil {
		return entities.SubmittedTransaction{}, errors.Wrap(err, "journaling submission")
	}
	return sub, nil
}

// ResolvePending resolves every journaled submission that has no stored
// outcome yet. Scans for different transactions are independent and run
// concurrently.
func (w *Watcher) ResolvePending(ctx context.Context) error {
	pending, err := w.journal.GetPendingSubmissions()
	if err != nil {
		return errors.Wrap(err, "loading pending submissions")
	}
	if len(pending) == 0 {
		return nil
	}
	w.log.Infow("resolving pending submissions", "count", len(pending))

	var errorGroup errgroup.Group
	for _, sub := range pending {
		errorGroup.Go(func() error {
			return w.resolve(ctx, sub)
		})
	}
	return errorGroup.Wait()
}

func (w *Watcher) resolve(ctx context.Context, sub entities.SubmittedTransaction) error {
	receipt, err := w.client.Receipt(ctx, sub, false)
	if err != nil {
		return errors.Wrapf(err, "resolving receipt for %s", sub.TxHash)
	}

	if err := w.journal.SaveReceipt(sub.TxHash, receipt); err != nil {
		return errors.Wrap(err, "journaling receipt")
	}

	if receipt != nil {
		w.watcherMetrics.IncIncluded(receipt.Block.Height)
		w.log.Infow("transaction included",
			"txHash", sub.TxHash, "block", receipt.Block.Hash, "height", receipt.Block.Height, "index", receipt.Tx.Index)
	} else {
		w.watcherMetrics.IncExpired()
		w.log.Warnw("transaction expired without inclusion",
			"txHash", sub.TxHash, "anchorHeight", sub.Options.Mortality.AnchorHeight, "period", sub.Options.Mortality.Period)
	}

	if w.indexer != nil {
		doc := elastic.NewReceiptDocument(sub, receipt, time.Now())
		if err := w.indexer.PublishReceipts(ctx, []elastic.ReceiptDocument{doc}); err != nil {
			return errors.Wrap(err, "indexing receipt")
		}
	}
	return nil
}
