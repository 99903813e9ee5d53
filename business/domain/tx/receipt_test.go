package tx

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/availkit/go-node-client/codec"
	"github.com/availkit/go-node-client/entities"
)

func testAccount(b byte) entities.AccountID {
	var a entities.AccountID
	for i := range a {
		a[i] = b
	}
	return a
}

func submittedAt(account entities.AccountID, nonce uint32, ext []byte, anchor uint32, period uint64) entities.SubmittedTransaction {
	return entities.SubmittedTransaction{
		TxHash:  codec.TxHash(ext),
		Account: account,
		Options: entities.ResolvedOptions{
			Nonce: nonce,
			Mortality: entities.ResolvedMortality{
				Period:       period,
				AnchorHash:   testBlockHash(anchor, 0),
				AnchorHeight: anchor,
			},
		},
	}
}

func TestReceiptResolver_FindsInclusion(t *testing.T) {
	node := newMockChain(1040, 1040)
	account := testAccount(0xA1)
	ext := signedExtrinsic(account, 7, 2)
	node.addExtrinsic(1005, signedExtrinsic(testAccount(0xB2), 3, 0))
	node.addExtrinsic(1005, ext)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	receipt, err := resolver.Receipt(context.Background(), submittedAt(account, 7, ext, 1000, 32), false)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	expected := &entities.TransactionReceipt{
		Block: entities.BlockRef{Hash: testBlockHash(1005, 0), Height: 1005},
		Tx:    entities.TxRef{Hash: codec.TxHash(ext), Index: 1},
	}
	if diff := cmp.Diff(expected, receipt); diff != "" {
		t.Errorf("unexpected receipt: %s", diff)
	}
}

func TestReceiptResolver_ExpiredWindowIsNilNotError(t *testing.T) {
	node := newMockChain(1040, 1040)

	account := testAccount(0xA1)
	ext := signedExtrinsic(account, 7, 2)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	receipt, err := resolver.Receipt(context.Background(), submittedAt(account, 7, ext, 1000, 32), false)
	require.NoError(t, err)
	require.Nil(t, receipt)
}

func TestReceiptResolver_EarliestMatchWins(t *testing.T) {
	node := newMockChain(1040, 1040)
	account := testAccount(0xA1)
	ext := signedExtrinsic(account, 7, 2)
	node.addExtrinsic(1010, ext)
	node.addExtrinsic(1003, ext)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	receipt, err := resolver.Receipt(context.Background(), submittedAt(account, 7, ext, 1000, 32), false)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, uint32(1003), receipt.Block.Height)
}

func TestReceiptResolver_HashMatchBeatsSignerFallback(t *testing.T) {
	node := newMockChain(1040, 1040)
	account := testAccount(0xA1)
	ext := signedExtrinsic(account, 7, 2)
	// Same account and nonce earlier in the block, different bytes.
	node.addExtrinsic(1005, signedExtrinsic(account, 7, 9))
	node.addExtrinsic(1005, ext)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	receipt, err := resolver.Receipt(context.Background(), submittedAt(account, 7, ext, 1000, 32), false)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, codec.TxHash(ext), receipt.Tx.Hash)
	require.Equal(t, uint32(1), receipt.Tx.Index)
}

func TestReceiptResolver_SignerFallbackMatchesReplacedTransaction(t *testing.T) {
	node := newMockChain(1040, 1040)
	account := testAccount(0xA1)
	submittedExt := signedExtrinsic(account, 7, 2)
	// A different transaction from the same account consumed the nonce.
	replacement := signedExtrinsic(account, 7, 5)
	node.addExtrinsic(1008, replacement)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	receipt, err := resolver.Receipt(context.Background(), submittedAt(account, 7, submittedExt, 1000, 32), false)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, uint32(1008), receipt.Block.Height)
	require.Equal(t, codec.TxHash(replacement), receipt.Tx.Hash)
}

func TestReceiptResolver_IdempotentOnFinalizedChain(t *testing.T) {
	node := newMockChain(1040, 1040)
	account := testAccount(0xA1)
	ext := signedExtrinsic(account, 7, 2)
	node.addExtrinsic(1005, ext)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	sub := submittedAt(account, 7, ext, 1000, 32)

	first, err := resolver.Receipt(context.Background(), sub, false)
	require.NoError(t, err)
	second, err := resolver.Receipt(context.Background(), sub, false)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("receipts differ between identical scans: %s", diff)
	}
}

func TestReceiptResolver_BestChainReceiptGoesStaleAfterReorg(t *testing.T) {
	node := newMockChain(1040, 990)
	account := testAccount(0xA1)
	ext := signedExtrinsic(account, 7, 2)
	node.addExtrinsic(1005, ext)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	sub := submittedAt(account, 7, ext, 1000, 32)

	receipt, err := resolver.Receipt(context.Background(), sub, true)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, uint32(1005), receipt.Block.Height)

	// The block carrying the transaction loses its fork race and the chain
	// finalizes past the mortality window without it.
	node.reorg(1005, nil)
	node.advance(1050, 1040)

	receipt, err = resolver.Receipt(context.Background(), sub, false)
	require.NoError(t, err)
	require.Nil(t, receipt)
}

func TestReceiptResolver_TransportErrorDoesNotAdvanceScan(t *testing.T) {
	node := newMockChain(1040, 1040)
	account := testAccount(0xA1)
	ext := signedExtrinsic(account, 7, 2)
	node.addExtrinsic(1002, ext)
	node.failNext("BlockHash", entities.NewTransportError(ErrMock))

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	sub := submittedAt(account, 7, ext, 1000, 32)

	_, err := resolver.Receipt(context.Background(), sub, false)
	require.Error(t, err)
	require.True(t, entities.IsRetryable(err))

	// The failed call surfaced instead of being skipped; a retried scan still
	// finds the transaction at the height the error interrupted.
	receipt, err := resolver.Receipt(context.Background(), sub, false)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, uint32(1002), receipt.Block.Height)
}

func TestReceiptResolver_WaitsForUnproducedBlocks(t *testing.T) {
	node := newMockChain(1002, 1002)
	account := testAccount(0xA1)
	ext := signedExtrinsic(account, 7, 2)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	sub := submittedAt(account, 7, ext, 1000, 8)

	done := make(chan struct{})
	var receipt *entities.TransactionReceipt
	var scanErr error
	go func() {
		defer close(done)
		receipt, scanErr = resolver.Receipt(context.Background(), sub, false)
	}()

	// Produce the remaining window after the scan is already underway.
	time.Sleep(10 * time.Millisecond)
	node.produce()    // 1003
	node.produce(ext) // 1004
	for i := 0; i < 6; i++ {
		node.produce()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not finish")
	}
	require.NoError(t, scanErr)
	require.NotNil(t, receipt)
	require.Equal(t, uint32(1004), receipt.Block.Height)
}

func TestReceiptResolver_CancellationStopsWait(t *testing.T) {
	node := newMockChain(1002, 1002)
	account := testAccount(0xA1)
	ext := signedExtrinsic(account, 7, 2)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())
	sub := submittedAt(account, 7, ext, 1000, 32)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := resolver.Receipt(ctx, sub, false)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled scan did not return")
	}
}

func TestReceiptResolver_FromRange(t *testing.T) {
	node := newMockChain(1040, 1040)
	ext := signedExtrinsic(testAccount(0xA1), 7, 2)
	node.addExtrinsic(1020, ext)

	resolver := NewReceiptResolver(node, testWaiter(node), testLogger())

	receipt, err := resolver.FromRange(context.Background(), codec.TxHash(ext), 1010, 1030, false)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, uint32(1020), receipt.Block.Height)

	receipt, err = resolver.FromRange(context.Background(), codec.TxHash(ext), 1021, 1030, false)
	require.NoError(t, err)
	require.Nil(t, receipt)

	_, err = resolver.FromRange(context.Background(), codec.TxHash(ext), 1030, 1010, false)
	require.Error(t, err)
	var uie *entities.UserInputError
	require.ErrorAs(t, err, &uie)
}
