package tx

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/availkit/go-node-client/codec"
	"github.com/availkit/go-node-client/entities"
)

var ErrMock = errors.New("mock error")

// mockNode is an in-memory chain: a canonical sequence of blocks with movable
// best and finalized heads. Errors can be scripted per method to simulate
// transport failures.
type mockNode struct {
	mu        sync.Mutex
	blocks    map[uint32]*entities.Block
	byHash    map[entities.Hash]*entities.Block
	best      uint32
	finalized uint32

	nextIndex  uint32
	version    entities.RuntimeVersion
	versionErr error
	genesis    entities.Hash

	submitted  [][]byte
	submitErr  error
	methodErrs map[string][]error
}

// newMockChain builds empty canonical blocks from genesis up to best.
func newMockChain(best, finalized uint32) *mockNode {
	n := &mockNode{
		blocks:     make(map[uint32]*entities.Block),
		byHash:     make(map[entities.Hash]*entities.Block),
		version:    entities.RuntimeVersion{SpecVersion: 39, TxVersion: 1},
		methodErrs: make(map[string][]error),
	}
	for h := uint32(0); h <= best; h++ {
		n.putBlock(h, nil)
	}
	n.best = best
	n.finalized = finalized
	n.genesis = n.blocks[0].Ref.Hash
	return n
}

func testBlockHash(height uint32, fork byte) entities.Hash {
	var h entities.Hash
	binary.BigEndian.PutUint32(h[0:4], height)
	h[31] = fork
	return h
}

func (n *mockNode) putBlock(height uint32, extrinsics [][]byte) {
	block := &entities.Block{
		Ref:        entities.BlockRef{Hash: testBlockHash(height, 0), Height: height},
		Extrinsics: extrinsics,
	}
	n.blocks[height] = block
	n.byHash[block.Ref.Hash] = block
}

// reorg replaces the canonical block at height with a fork block carrying the
// given extrinsics. The displaced block stays known by hash, like a real node
// keeps stale forks around.
func (n *mockNode) reorg(height uint32, extrinsics [][]byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	block := &entities.Block{
		Ref:        entities.BlockRef{Hash: testBlockHash(height, 1), Height: height},
		Extrinsics: extrinsics,
	}
	n.blocks[height] = block
	n.byHash[block.Ref.Hash] = block
}

func (n *mockNode) advance(best, finalized uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for h := n.best + 1; h <= best; h++ {
		n.putBlock(h, nil)
	}
	n.best = best
	n.finalized = finalized
}

// produce appends one finalized block at best+1 carrying the given extrinsics.
// The block is complete before it becomes visible, like a real node.
func (n *mockNode) produce(extrinsics ...[]byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := n.best + 1
	block := &entities.Block{
		Ref:        entities.BlockRef{Hash: testBlockHash(h, 0), Height: h},
		Extrinsics: extrinsics,
	}
	n.blocks[h] = block
	n.byHash[block.Ref.Hash] = block
	n.best = h
	n.finalized = h
}

func (n *mockNode) addExtrinsic(height uint32, ext []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	block := n.blocks[height]
	block.Extrinsics = append(block.Extrinsics, ext)
}

// failNext queues transport errors for the next calls of the given method.
func (n *mockNode) failNext(method string, errs ...error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.methodErrs[method] = append(n.methodErrs[method], errs...)
}

func (n *mockNode) scriptedErr(method string) error {
	queue := n.methodErrs[method]
	if len(queue) == 0 {
		return nil
	}
	n.methodErrs[method] = queue[1:]
	return queue[0]
}

func (n *mockNode) BlockHash(_ context.Context, height *uint32) (*entities.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.scriptedErr("BlockHash"); err != nil {
		return nil, err
	}
	h := n.best
	if height != nil {
		h = *height
	}
	if h > n.best {
		return nil, nil
	}
	hash := n.blocks[h].Ref.Hash
	return &hash, nil
}

func (n *mockNode) FinalizedHead(_ context.Context) (entities.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.scriptedErr("FinalizedHead"); err != nil {
		return entities.Hash{}, err
	}
	return n.blocks[n.finalized].Ref.Hash, nil
}

func (n *mockNode) Header(_ context.Context, hash *entities.Hash) (*entities.Header, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.scriptedErr("Header"); err != nil {
		return nil, err
	}
	block := n.blocks[n.best]
	if hash != nil {
		block = n.byHash[*hash]
		if block == nil {
			return nil, nil
		}
	}
	return &entities.Header{Number: block.Ref.Height, Hash: block.Ref.Hash}, nil
}

func (n *mockNode) Block(_ context.Context, hash entities.Hash) (*entities.Block, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.scriptedErr("Block"); err != nil {
		return nil, err
	}
	block := n.byHash[hash]
	if block == nil {
		return nil, nil
	}
	return block, nil
}

func (n *mockNode) AccountNextIndex(_ context.Context, _ string) (uint32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.scriptedErr("AccountNextIndex"); err != nil {
		return 0, err
	}
	return n.nextIndex, nil
}

func (n *mockNode) RuntimeVersion(_ context.Context) (entities.RuntimeVersion, error) {
	if n.versionErr != nil {
		return entities.RuntimeVersion{}, n.versionErr
	}
	return n.version, nil
}

func (n *mockNode) GenesisHash(_ context.Context) (entities.Hash, error) {
	return n.genesis, nil
}

func (n *mockNode) SubmitExtrinsic(_ context.Context, extrinsic []byte) (entities.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.submitErr != nil {
		return entities.Hash{}, n.submitErr
	}
	n.submitted = append(n.submitted, extrinsic)
	return codec.TxHash(extrinsic), nil
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func testWaiter(node *mockNode) *PollWaiter {
	return NewPollWaiter(node, time.Millisecond, testLogger())
}

// signedExtrinsic assembles a valid signed extrinsic without going through the
// builder, for planting transactions into mock blocks.
func signedExtrinsic(account entities.AccountID, nonce uint32, appID uint32) []byte {
	sig := make([]byte, 64)
	for i := range sig {
		sig[i] = byte(i)
	}
	era := codec.MortalEra(32, 1000)
	call := entities.Call{PalletID: 29, VariantID: 1, Args: []byte{0x04, 0xAB}}
	encoded, err := codec.EncodeExtrinsic(account, sig, era, nonce, 0, appID, call.Encode())
	if err != nil {
		panic(err)
	}
	return encoded
}
