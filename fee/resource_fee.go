// Package fee implements the fee engine of spec.md §4.9: the resource fee
// (non-refundable + refundable) and the rent fee (extension + size-increase
// components, with the rent-write-fee curve), all saturating and computed
// as pure functions of their inputs so that identical inputs always yield
// identical outputs (spec.md §8 fee-determinism property).
package fee

// historicalFeeBaseBytes and codeEntryRentDivisor are consensus constants
// per spec.md §9(b): "do not refactor into configuration without a
// protocol-change path."
const (
	historicalFeeBaseBytes = 300
	codeEntryRentDivisor   = 3
)

// TransactionResources is the measured-or-predicted resource vector a fee is
// computed from (spec.md §4.9).
type TransactionResources struct {
	Instructions            uint32
	DiskReadEntries         uint32
	WriteEntries            uint32
	DiskReadBytes           uint32
	WriteBytes              uint32
	ContractEventsSizeBytes uint32
	TransactionSizeBytes    uint32
}

// FeeConfiguration is the set of per-unit prices the resource fee is priced
// against.
type FeeConfiguration struct {
	FeePerInstructionIncrement int64
	FeePerDiskReadEntry        int64
	FeePerWriteEntry           int64
	FeePerDiskRead1KB          int64
	FeePerWrite1KB             int64
	FeePerHistorical1KB        int64
	FeePerContractEvent1KB     int64
	FeePerTransactionSize1KB   int64
}

// ComputeTransactionResourceFee implements spec.md §4.9's resource fee:
// returns (nonRefundable, refundable).
func ComputeTransactionResourceFee(res TransactionResources, cfg FeeConfiguration) (nonRefundable, refundable int64) {
	instructionFee := ceilDiv(saturatingMul(int64(res.Instructions), cfg.FeePerInstructionIncrement), 10_000)

	entryFee := saturatingAdd(
		saturatingMul(int64(res.DiskReadEntries), cfg.FeePerDiskReadEntry),
		saturatingMul(int64(res.WriteEntries), cfg.FeePerWriteEntry),
	)

	readByteFee := ceilDiv(saturatingMul(int64(res.DiskReadBytes), cfg.FeePerDiskRead1KB), 1024)
	writeByteFee := ceilDiv(saturatingMul(int64(res.WriteBytes), cfg.FeePerWrite1KB), 1024)

	historicalFee := ceilDiv(
		saturatingMul(saturatingAdd(int64(res.TransactionSizeBytes), historicalFeeBaseBytes), cfg.FeePerHistorical1KB),
		1024,
	)
	txSizeFee := ceilDiv(saturatingMul(int64(res.TransactionSizeBytes), cfg.FeePerTransactionSize1KB), 1024)

	eventsFee := ceilDiv(saturatingMul(int64(res.ContractEventsSizeBytes), cfg.FeePerContractEvent1KB), 1024)

	nonRefundable = saturatingAdd(instructionFee, entryFee)
	nonRefundable = saturatingAdd(nonRefundable, readByteFee)
	nonRefundable = saturatingAdd(nonRefundable, writeByteFee)
	nonRefundable = saturatingAdd(nonRefundable, historicalFee)
	nonRefundable = saturatingAdd(nonRefundable, txSizeFee)

	return nonRefundable, eventsFee
}
