package noderpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/availkit/go-node-client/entities"
	"github.com/availkit/go-node-client/retry"
)

const (
	methodBlockHash        = "chain_getBlockHash"
	methodHeader           = "chain_getHeader"
	methodFinalizedHead    = "chain_getFinalizedHead"
	methodBlock            = "chain_getBlock"
	methodAccountNextIndex = "system_accountNextIndex"
	methodRuntimeVersion   = "state_getRuntimeVersion"
	methodSubmitExtrinsic  = "author_submitExtrinsic"

	methodSubscribeNewHeads         = "chain_subscribeNewHeads"
	methodUnsubscribeNewHeads       = "chain_unsubscribeNewHeads"
	methodSubscribeFinalizedHeads   = "chain_subscribeFinalizedHeads"
	methodUnsubscribeFinalizedHeads = "chain_unsubscribeFinalizedHeads"

	runtimeVersionKey = "runtime-version"
	genesisHashKey    = "genesis-hash"
)

// Client exposes the node's RPC surface as typed calls. Every read goes through
// the configured retry policy; submission never retries (exactly one broadcast
// per call). The zero-height hash and runtime version are cached.
type Client struct {
	transport Transport
	policy    retry.Policy
	log       *zap.SugaredLogger

	runtimeVersionCache *ttlcache.Cache[string, entities.RuntimeVersion]
	runtimeVersionLock  *sync.Mutex
	genesisCache        *ttlcache.Cache[string, entities.Hash]
	genesisLock         *sync.Mutex
}

func NewClient(transport Transport, policy retry.Policy, logger *zap.SugaredLogger) *Client {
	return &Client{
		transport:           transport,
		policy:              policy,
		log:                 logger,
		runtimeVersionCache: ttlcache.New[string, entities.RuntimeVersion](ttlcache.WithTTL[string, entities.RuntimeVersion](10 * time.Minute)),
		runtimeVersionLock:  &sync.Mutex{},
		genesisCache:        ttlcache.New[string, entities.Hash](ttlcache.WithTTL[string, entities.Hash](ttlcache.NoTTL)),
		genesisLock:         &sync.Mutex{},
	}
}

// WithPolicy returns a client sharing this client's transport and caches but
// using a different retry policy. Used for per-call overrides.
func (c *Client) WithPolicy(policy retry.Policy) *Client {
	clone := *c
	clone.policy = policy
	return &clone
}

// Policy returns the client-level retry policy.
func (c *Client) Policy() retry.Policy {
	return c.policy
}

// BlockHash returns the hash at the given height on the node's best chain, or
// the best head hash when height is nil. A nil result means the chain has not
// produced that block.
func (c *Client) BlockHash(ctx context.Context, height *uint32) (*entities.Hash, error) {
	params := []any{}
	if height != nil {
		params = append(params, *height)
	}
	return retry.DoOptional(ctx, c.policy, func(ctx context.Context) (*entities.Hash, error) {
		raw, err := c.transport.Call(ctx, methodBlockHash, params)
		if err != nil {
			return nil, err
		}
		return decodeOptionalHash(raw)
	})
}

// FinalizedHead returns the hash of the latest finalized block.
func (c *Client) FinalizedHead(ctx context.Context) (entities.Hash, error) {
	return retry.Do(ctx, c.policy, func(ctx context.Context) (entities.Hash, error) {
		raw, err := c.transport.Call(ctx, methodFinalizedHead, nil)
		if err != nil {
			return entities.Hash{}, err
		}
		return decodeHash(raw)
	})
}

type headerJSON struct {
	ParentHash entities.Hash `json:"parentHash"`
	Number     string        `json:"number"`
}

// Header fetches a header by hash; a nil hash returns the best head. A nil
// result means the node does not know the block.
func (c *Client) Header(ctx context.Context, hash *entities.Hash) (*entities.Header, error) {
	params := []any{}
	if hash != nil {
		params = append(params, hash.Hex())
	}
	return retry.DoOptional(ctx, c.policy, func(ctx context.Context) (*entities.Header, error) {
		raw, err := c.transport.Call(ctx, methodHeader, params)
		if err != nil {
			return nil, err
		}
		if isNull(raw) {
			return nil, nil
		}
		var hj headerJSON
		if err := json.Unmarshal(raw, &hj); err != nil {
			return nil, entities.NewDecodingError(fmt.Sprintf("header: %v", err))
		}
		number, err := parseHexUint32(hj.Number)
		if err != nil {
			return nil, err
		}
		header := &entities.Header{ParentHash: hj.ParentHash, Number: number}
		if hash != nil {
			header.Hash = *hash
		}
		return header, nil
	})
}

type blockJSON struct {
	Block struct {
		Header     headerJSON `json:"header"`
		Extrinsics []string   `json:"extrinsics"`
	} `json:"block"`
}

// Block fetches a full block body by hash. A nil result means the node does
// not know the block.
func (c *Client) Block(ctx context.Context, hash entities.Hash) (*entities.Block, error) {
	return retry.DoOptional(ctx, c.policy, func(ctx context.Context) (*entities.Block, error) {
		raw, err := c.transport.Call(ctx, methodBlock, []any{hash.Hex()})
		if err != nil {
			return nil, err
		}
		if isNull(raw) {
			return nil, nil
		}
		var bj blockJSON
		if err := json.Unmarshal(raw, &bj); err != nil {
			return nil, entities.NewDecodingError(fmt.Sprintf("block: %v", err))
		}
		height, err := parseHexUint32(bj.Block.Header.Number)
		if err != nil {
			return nil, err
		}
		extrinsics := make([][]byte, 0, len(bj.Block.Extrinsics))
		for i, e := range bj.Block.Extrinsics {
			decoded, err := hex.DecodeString(strings.TrimPrefix(e, "0x"))
			if err != nil {
				return nil, entities.NewDecodingError(fmt.Sprintf("extrinsic %d in block %s: %v", i, hash, err))
			}
			extrinsics = append(extrinsics, decoded)
		}
		return &entities.Block{
			Ref:        entities.BlockRef{Hash: hash, Height: height},
			Extrinsics: extrinsics,
		}, nil
	})
}

// AccountNextIndex returns the account's next usable nonce, taking the
// transaction pool into account. The value may race under concurrent
// submissions from the same account; see the options resolver.
func (c *Client) AccountNextIndex(ctx context.Context, address string) (uint32, error) {
	return retry.Do(ctx, c.policy, func(ctx context.Context) (uint32, error) {
		raw, err := c.transport.Call(ctx, methodAccountNextIndex, []any{address})
		if err != nil {
			return 0, err
		}
		var nonce uint32
		if err := json.Unmarshal(raw, &nonce); err != nil {
			return 0, entities.NewDecodingError(fmt.Sprintf("account next index: %v", err))
		}
		return nonce, nil
	})
}

type runtimeVersionJSON struct {
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

// RuntimeVersion returns the chain's current runtime version identifiers,
// cached for a few minutes since upgrades are rare.
func (c *Client) RuntimeVersion(ctx context.Context) (entities.RuntimeVersion, error) {
	c.runtimeVersionLock.Lock() // lock so that we do not get multiple threads inside the `if`
	defer c.runtimeVersionLock.Unlock()

	if item := c.runtimeVersionCache.Get(runtimeVersionKey); item != nil {
		return item.Value(), nil
	}

	version, err := retry.Do(ctx, c.policy, func(ctx context.Context) (entities.RuntimeVersion, error) {
		raw, err := c.transport.Call(ctx, methodRuntimeVersion, nil)
		if err != nil {
			return entities.RuntimeVersion{}, err
		}
		var rv runtimeVersionJSON
		if err := json.Unmarshal(raw, &rv); err != nil {
			return entities.RuntimeVersion{}, entities.NewDecodingError(fmt.Sprintf("runtime version: %v", err))
		}
		return entities.RuntimeVersion{SpecVersion: rv.SpecVersion, TxVersion: rv.TransactionVersion}, nil
	})
	if err != nil {
		return entities.RuntimeVersion{}, errors.Wrap(err, "fetching runtime version")
	}

	c.runtimeVersionCache.Set(runtimeVersionKey, version, ttlcache.DefaultTTL)
	return version, nil
}

// GenesisHash returns the hash of block zero, cached permanently.
func (c *Client) GenesisHash(ctx context.Context) (entities.Hash, error) {
	c.genesisLock.Lock()
	defer c.genesisLock.Unlock()

	if item := c.genesisCache.Get(genesisHashKey); item != nil {
		return item.Value(), nil
	}

	zero := uint32(0)
	hash, err := c.BlockHash(ctx, &zero)
	if err != nil {
		return entities.Hash{}, errors.Wrap(err, "fetching genesis hash")
	}
	if hash == nil {
		return entities.Hash{}, entities.NewDecodingError("node returned no genesis hash")
	}

	c.genesisCache.Set(genesisHashKey, *hash, ttlcache.NoTTL)
	return *hash, nil
}

// SubmitExtrinsic broadcasts a fully encoded extrinsic and returns the hash the
// node reports. Exactly one broadcast per call: no retry policy applies here,
// resubmitting identical bytes after a rejection fails identically.
func (c *Client) SubmitExtrinsic(ctx context.Context, extrinsic []byte) (entities.Hash, error) {
	raw, err := c.transport.Call(ctx, methodSubmitExtrinsic, []any{"0x" + hex.EncodeToString(extrinsic)})
	if err != nil {
		return entities.Hash{}, err
	}
	return decodeHash(raw)
}

// ChainInfo snapshots the best and finalized heads.
func (c *Client) ChainInfo(ctx context.Context) (entities.ChainInfo, error) {
	var info entities.ChainInfo

	bestHash, err := c.BlockHash(ctx, nil)
	if err != nil {
		return info, errors.Wrap(err, "fetching best hash")
	}
	if bestHash == nil {
		return info, entities.NewDecodingError("node returned no best hash")
	}
	bestHeader, err := c.Header(ctx, bestHash)
	if err != nil {
		return info, errors.Wrap(err, "fetching best header")
	}
	if bestHeader == nil {
		return info, entities.NewDecodingError("best head has no header")
	}

	finalizedHash, err := c.FinalizedHead(ctx)
	if err != nil {
		return info, errors.Wrap(err, "fetching finalized head")
	}
	finalizedHeader, err := c.Header(ctx, &finalizedHash)
	if err != nil {
		return info, errors.Wrap(err, "fetching finalized header")
	}
	if finalizedHeader == nil {
		return info, entities.NewDecodingError("finalized head has no header")
	}

	info.BestHash = *bestHash
	info.BestHeight = bestHeader.Number
	info.FinalizedHash = finalizedHash
	info.FinalizedHeight = finalizedHeader.Number
	return info, nil
}

// SubscribeHeads streams new (or finalized) block headers. Only available on
// subscription-capable transports; HTTP callers get UnsupportedOperation and
// should poll instead.
func (c *Client) SubscribeHeads(ctx context.Context, finalized bool) (<-chan entities.Header, func(), error) {
	st, ok := c.transport.(SubscriptionTransport)
	if !ok {
		method := methodSubscribeNewHeads
		if finalized {
			method = methodSubscribeFinalizedHeads
		}
		return nil, nil, entities.NewUnsupportedOperation(method)
	}

	method, unsubMethod := methodSubscribeNewHeads, methodUnsubscribeNewHeads
	if finalized {
		method, unsubMethod = methodSubscribeFinalizedHeads, methodUnsubscribeFinalizedHeads
	}

	sub, err := st.Subscribe(ctx, method, unsubMethod, nil)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan entities.Header, 16)
	go func() {
		defer close(out)
		for raw := range sub.C {
			var hj headerJSON
			if err := json.Unmarshal(raw, &hj); err != nil {
				c.log.Warnw("dropping malformed head notification", "error", err)
				continue
			}
			number, err := parseHexUint32(hj.Number)
			if err != nil {
				c.log.Warnw("dropping head notification with bad number", "number", hj.Number)
				continue
			}
			select {
			case out <- entities.Header{ParentHash: hj.ParentHash, Number: number}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Unsubscribe, nil
}

func decodeHash(raw json.RawMessage) (entities.Hash, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return entities.Hash{}, entities.NewDecodingError(fmt.Sprintf("hash result: %v", err))
	}
	h, err := entities.HashFromHex(s)
	if err != nil {
		return entities.Hash{}, entities.NewDecodingError(fmt.Sprintf("hash result %q", s))
	}
	return h, nil
}

func decodeOptionalHash(raw json.RawMessage) (*entities.Hash, error) {
	if isNull(raw) {
		return nil, nil
	}
	h, err := decodeHash(raw)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func parseHexUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, entities.NewDecodingError(fmt.Sprintf("block number %q: %v", s, err))
	}
	return uint32(v), nil
}
