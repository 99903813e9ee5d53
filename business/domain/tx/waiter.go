package tx

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/availkit/go-node-client/entities"
)

// BlockWaiter blocks until the selected chain head reaches at least the target
// height. Receipt scans use it as their suspension point between blocks.
type BlockWaiter interface {
	// Wait returns the head height once it is >= height. finalized selects the
	// finalized chain head instead of the best head.
	Wait(ctx context.Context, height uint32, finalized bool) (uint32, error)
}

// PollWaiter implements BlockWaiter for stateless transports by polling the
// head at a fixed interval.
type PollWaiter struct {
	node     NodeClient
	interval time.Duration
	log      *zap.SugaredLogger
}

const defaultPollInterval = 3 * time.Second

func NewPollWaiter(node NodeClient, interval time.Duration, logger *zap.SugaredLogger) *PollWaiter {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &PollWaiter{node: node, interval: interval, log: logger}
}

func (w *PollWaiter) Wait(ctx context.Context, height uint32, finalized bool) (uint32, error) {
	for {
		head, err := w.headHeight(ctx, finalized)
		if err != nil {
			return 0, err
		}
		if head >= height {
			return head, nil
		}
		w.log.Debugw("waiting for block", "target", height, "head", head, "finalized", finalized)
		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}
}

func (w *PollWaiter) headHeight(ctx context.Context, finalized bool) (uint32, error) {
	var hash *entities.Hash
	if finalized {
		h, err := w.node.FinalizedHead(ctx)
		if err != nil {
			return 0, err
		}
		hash = &h
	}
	header, err := w.node.Header(ctx, hash)
	if err != nil {
		return 0, err
	}
	if header == nil {
		return 0, entities.NewDecodingError("node returned no header for its own head")
	}
	return header.Number, nil
}

// HeadSubscriber is the subscription capability SubWaiter needs; satisfied by
// the websocket node client.
type HeadSubscriber interface {
	SubscribeHeads(ctx context.Context, finalized bool) (<-chan entities.Header, func(), error)
}

// SubWaiter implements BlockWaiter on persistent transports via head
// subscriptions, with a poll of the current head before consuming the stream so
// that a target already reached returns immediately.
type SubWaiter struct {
	node NodeClient
	subs HeadSubscriber
	log  *zap.SugaredLogger
}

func NewSubWaiter(node NodeClient, subs HeadSubscriber, logger *zap.SugaredLogger) *SubWaiter {
	return &SubWaiter{node: node, subs: subs, log: logger}
}

func (w *SubWaiter) Wait(ctx context.Context, height uint32, finalized bool) (uint32, error) {
	heads, unsubscribe, err := w.subs.SubscribeHeads(ctx, finalized)
	if err != nil {
		return 0, err
	}
	defer unsubscribe()

	// The subscription only delivers heads produced after it was opened, so
	// check the current head once before blocking on the stream.
	poll := PollWaiter{node: w.node, log: w.log}
	head, err := poll.headHeight(ctx, finalized)
	if err != nil {
		return 0, err
	}
	if head >= height {
		return head, nil
	}

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case header, ok := <-heads:
			if !ok {
				return 0, entities.NewTransportError(errors.New("head subscription closed"))
			}
			if header.Number >= height {
				return header.Number, nil
			}
		}
	}
}
