package entities

import "math/bits"

const (
	// DefaultMortalityPeriod is the number of blocks a transaction stays valid
	// when the caller does not specify a mortality.
	DefaultMortalityPeriod = 32

	// MinMortalityPeriod and MaxMortalityPeriod bound the era period accepted
	// by the runtime. Periods outside this range are clamped.
	MinMortalityPeriod = 4
	MaxMortalityPeriod = 65536
)

// Options carries the caller-supplied signing parameters. Unset fields are
// filled in with chain-derived defaults during resolution.
type Options struct {
	// Nonce overrides the account's next transaction index when set.
	Nonce *uint32
	// AppID is the data availability namespace tag. Defaults to 0.
	AppID uint32
	// Tip in the smallest balance unit. Defaults to 0.
	Tip uint64
	// Mortality configures the validity window. Defaults to a 32 block period
	// anchored at the finalized head at resolution time.
	Mortality *Mortality
}

// Mortality is the caller-facing validity window configuration. AnchorHash may
// be zero, in which case the finalized head at resolution time is used.
type Mortality struct {
	AnchorHash Hash
	Period     uint64
}

// ResolvedOptions are Options with every default filled in. Immutable once
// produced; they are echoed on the submitted transaction handle so that receipt
// resolution knows the mortality window and nonce that were signed.
type ResolvedOptions struct {
	AppID     uint32
	Tip       uint64
	Nonce     uint32
	Mortality ResolvedMortality
}

// ResolvedMortality anchors the validity window at a concrete block.
type ResolvedMortality struct {
	Period       uint64
	AnchorHash   Hash
	AnchorHeight uint32
}

// EndHeight returns the first height at which the transaction can no longer be
// included. The window is [AnchorHeight, AnchorHeight+Period).
func (m ResolvedMortality) EndHeight() uint32 {
	end := uint64(m.AnchorHeight) + m.Period
	if end > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(end)
}

// NormalizePeriod rounds a mortality period up to the next power of two and
// clamps it to the runtime's accepted range.
func NormalizePeriod(period uint64) uint64 {
	if period < MinMortalityPeriod {
		return MinMortalityPeriod
	}
	if period > MaxMortalityPeriod {
		return MaxMortalityPeriod
	}
	if period&(period-1) == 0 {
		return period
	}
	return 1 << bits.Len64(period)
}
