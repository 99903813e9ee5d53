package entities

// Call is an encoded runtime call: the pallet and variant indices followed by
// the SCALE-encoded arguments. Producing these bytes is the job of an external
// codec/metadata adapter; this library treats them as opaque.
type Call struct {
	PalletID  uint8
	VariantID uint8
	Args      []byte
}

// Encode returns the call exactly as it appears inside an extrinsic.
func (c Call) Encode() []byte {
	out := make([]byte, 0, 2+len(c.Args))
	out = append(out, c.PalletID, c.VariantID)
	out = append(out, c.Args...)
	return out
}

// SignedTransaction is an immutable, fully encoded and signed extrinsic,
// produced by the builder and consumed by the submitter.
type SignedTransaction struct {
	// Payload is the complete length-prefixed extrinsic as sent on the wire.
	Payload []byte
	// Signature over the signer payload.
	Signature []byte
	// Signer is the account that produced the signature.
	Signer AccountID
	// Options are the resolved options the extrinsic was signed with.
	Options ResolvedOptions
}

// SubmittedTransaction is the handle returned after a successful broadcast and
// the sole input to receipt resolution. It holds no live subscription; every
// receipt lookup is a fresh, idempotent scan.
type SubmittedTransaction struct {
	TxHash  Hash
	Account AccountID
	Options ResolvedOptions
}

// BlockRef identifies a block by hash and height.
type BlockRef struct {
	Hash   Hash
	Height uint32
}

// TxRef identifies an extrinsic inside a block.
type TxRef struct {
	Hash  Hash
	Index uint32
}

// TransactionReceipt proves that a transaction was found inside a scanned
// block. It does not by itself prove finality; the block's state is a separate,
// point-in-time query.
type TransactionReceipt struct {
	Block BlockRef
	Tx    TxRef
}

// Header is the subset of a chain block header this library consumes.
type Header struct {
	ParentHash Hash
	Number     uint32
	Hash       Hash
}

// Block is a block body as fetched from the node: its reference plus the raw
// encoded extrinsics in on-chain order.
type Block struct {
	Ref        BlockRef
	Extrinsics [][]byte
}

// ChainInfo is a snapshot of the node's best and finalized heads.
type ChainInfo struct {
	BestHash        Hash
	BestHeight      uint32
	FinalizedHash   Hash
	FinalizedHeight uint32
}

// RuntimeVersion carries the version identifiers that must be embedded in the
// signer payload.
type RuntimeVersion struct {
	SpecVersion uint32
	TxVersion   uint32
}
