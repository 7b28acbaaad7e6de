package simulation

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/fee"
	"github.com/withobsrvr/soroban-invocation-core/invocation"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// SimulationAdjustmentFactor is an additive-then-multiplicative headroom
// adjustment over a measured resource value (soroban-simulation's
// SimulationAdjustmentFactor): operators pad recording-mode's exact
// measurements before handing them to a subsequent enforcing run, since a
// contract's real execution can vary slightly run to run (a different
// storage snapshot, a different auth payload) and an exact-measurement
// footprint would make the enforcing run spuriously fail on a tighter-than-
// actual budget.
type SimulationAdjustmentFactor struct {
	AdditiveFactor       int64
	MultiplicativeFactor float64
}

// identityFactor adjusts nothing: additive zero, multiplicative one.
func identityFactor() SimulationAdjustmentFactor {
	return SimulationAdjustmentFactor{MultiplicativeFactor: 1.0}
}

// adjustU32 mirrors SimulationAdjustmentFactor::adjust_u32: a zero value is
// left untouched (nothing was measured, so padding it would only waste
// resources), otherwise the larger of the additive and multiplicative
// adjustment wins.
func (f SimulationAdjustmentFactor) adjustU32(value uint32) uint32 {
	if value == 0 {
		return 0
	}
	additive := saturatingAddU32(value, f.AdditiveFactor)
	multiplicative := clampToU32(float64(value) * f.MultiplicativeFactor)
	if multiplicative > additive {
		return multiplicative
	}
	return additive
}

func (f SimulationAdjustmentFactor) adjustI64(value int64) int64 {
	if value == 0 {
		return 0
	}
	additive := saturatingAddI64(value, f.AdditiveFactor)
	multiplicative := clampToI64(float64(value) * f.MultiplicativeFactor)
	if multiplicative > additive {
		return multiplicative
	}
	return additive
}

func saturatingAddU32(value uint32, delta int64) uint32 {
	sum := int64(value) + delta
	if sum < 0 {
		return 0
	}
	if sum > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sum)
}

func saturatingAddI64(value, delta int64) int64 {
	sum := value + delta
	// Overflow only matters for pathological configuration; clamp rather
	// than wrap.
	if delta > 0 && sum < value {
		return int64(^uint64(0) >> 1)
	}
	if delta < 0 && sum > value {
		return -int64(^uint64(0)>>1) - 1
	}
	return sum
}

func clampToU32(v float64) uint32 {
	if v < 0 {
		return 0
	}
	if v > float64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(v)
}

func clampToI64(v float64) int64 {
	max := float64(int64(^uint64(0) >> 1))
	min := float64(-int64(^uint64(0)>>1) - 1)
	if v < min {
		return int64(min)
	}
	if v > max {
		return int64(max)
	}
	return int64(v)
}

// SimulationAdjustmentConfig bundles the per-resource headroom factors
// applied to a recording-mode prediction before it is handed to a fee
// computation or an enforcing run (soroban-simulation's
// SimulationAdjustmentConfig). RefundableFee is applied to the combined
// refundable-fee-plus-rent-fee total, exactly as
// resources.rs::compute_resource_fee applies it.
type SimulationAdjustmentConfig struct {
	Instructions    SimulationAdjustmentFactor
	ReadBytes       SimulationAdjustmentFactor
	WriteBytes      SimulationAdjustmentFactor
	RefundableFee   SimulationAdjustmentFactor
	TransactionSize SimulationAdjustmentFactor
}

// NoAdjustments is the identity configuration (soroban-simulation's
// SimulationAdjustmentConfig::no_adjustments): every factor passes its
// input through unchanged. Used by tests and by callers that want the raw
// recording-mode measurement.
func NoAdjustments() SimulationAdjustmentConfig {
	return SimulationAdjustmentConfig{
		Instructions:    identityFactor(),
		ReadBytes:       identityFactor(),
		WriteBytes:      identityFactor(),
		RefundableFee:   identityFactor(),
		TransactionSize: identityFactor(),
	}
}

// AdjustResources pads a recording-mode Resources prediction in place
// (resources.rs::SimulationAdjustmentConfig::adjust_resources): only the
// instruction count and the two disk-byte counters are padded here: the
// footprint's key lists themselves are exact regardless of adjustment.
func (cfg SimulationAdjustmentConfig) AdjustResources(r *invocation.Resources) {
	r.InstructionLimit = cfg.Instructions.adjustU32(r.InstructionLimit)
	r.DiskReadByteLimit = cfg.ReadBytes.adjustU32(r.DiskReadByteLimit)
	r.WriteByteLimit = cfg.WriteBytes.adjustU32(r.WriteByteLimit)
}

// ComputeResourceFee implements soroban-simulation's
// resources.rs::compute_resource_fee: the transaction resource fee plus the
// rent fee, with the adjustment config's refundable-fee factor applied to
// the refundable-fee-plus-rent-fee sum (not to either term individually).
func ComputeResourceFee(
	resources fee.TransactionResources,
	feeCfg fee.FeeConfiguration,
	rentChanges []fee.LedgerEntryRentChange,
	rentCfg fee.RentFeeConfiguration,
	currentLedgerSeq uint32,
	adjustment SimulationAdjustmentConfig,
) int64 {
	nonRefundable, refundable := fee.ComputeTransactionResourceFee(resources, feeCfg)
	rentFee := fee.ComputeRentFee(rentChanges, rentCfg, currentLedgerSeq)
	adjustedRefundable := adjustment.RefundableFee.adjustI64(saturatingAddI64(refundable, rentFee))
	return saturatingAddI64(nonRefundable, adjustedRefundable)
}

// estimatedEnvelopeOverheadBytes approximates the fixed byte cost of the
// worst-case-signed transaction envelope the original estimator builds
// around a Soroban operation: a 20-signature V2 precondition (time bounds +
// ledger bounds + 2 extra Ed25519-signed-payload signers) plus the
// transaction's own fixed fields (source account, fee, sequence number,
// hash memo, single-operation list, SorobanTransactionData's non-footprint
// fields and ext). This core could not confirm the exact generated field
// names for the nested precondition/signature/muxed-account XDR unions
// anywhere in the retrieval pack (the same unconfirmed-field situation as
// host/auth.go's credentials and invocation/resources.go's byte caps), so
// rather than guess at those shapes it sums this fixed, independently-
// measured overhead with the footprint's and restored-entries' own (fully
// confirmed) encodings below. See DESIGN.md.
const estimatedEnvelopeOverheadBytes uint32 = 1200

// restoredEntryIndexEncodedSize is the encoded size of one archived-entry
// ordinal (a plain uint32 in the resources ext).
const restoredEntryIndexEncodedSize uint32 = 4

// EstimateTransactionSize implements
// resources.rs::estimate_max_transaction_size_for_operation: the maximum
// plausible size of the transaction envelope that would carry this
// invocation's footprint, used to price the transaction-size component of
// the resource fee. Built from the footprint's own encoded key sizes (the
// only part of the estimate this core can construct from confirmed XDR
// shapes) plus the fixed envelope overhead above and 4 bytes per restored
// entry ordinal.
func EstimateTransactionSize(readOnly, readWrite []xdr.LedgerKey, restoredRWEntryIndices []uint32, adjustment SimulationAdjustmentConfig) (uint32, error) {
	var total uint32 = estimatedEnvelopeOverheadBytes
	for _, k := range readOnly {
		encoded, err := xdrcodec.Encode(k)
		if err != nil {
			return 0, err
		}
		total += uint32(len(encoded))
	}
	for _, k := range readWrite {
		encoded, err := xdrcodec.Encode(k)
		if err != nil {
			return 0, err
		}
		total += uint32(len(encoded))
	}
	total += uint32(len(restoredRWEntryIndices)) * restoredEntryIndexEncodedSize
	return adjustment.TransactionSize.adjustU32(total), nil
}
