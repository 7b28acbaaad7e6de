package fee

// RentFeeConfiguration prices the rent fee of spec.md §4.9.
type RentFeeConfiguration struct {
	FeePerWriteEntry              int64
	FeePerRent1KB                 int64
	FeePerWrite1KB                int64
	PersistentRentRateDenominator int64
	TemporaryRentRateDenominator  int64
}

// LedgerEntryRentChange is one rent-relevant change-set record (spec.md §3,
// §4.8's rent-change extraction).
type LedgerEntryRentChange struct {
	IsPersistent       bool
	IsCodeEntry        bool
	OldSizeBytes       uint32
	NewSizeBytes       uint32
	OldLiveUntilLedger uint32
	NewLiveUntilLedger uint32
}

// ComputeRentFee implements spec.md §4.9's rent fee: for each change, an
// extension component priced at the entry's old size over the ledgers the
// TTL was extended by, plus a size-increase component priced at the size
// delta over the ledgers remaining until the new TTL, then a flat TTL write
// fee per entry.
func ComputeRentFee(changes []LedgerEntryRentChange, cfg RentFeeConfiguration, currentLedgerSeq uint32) int64 {
	var total int64
	for _, c := range changes {
		denom := cfg.PersistentRentRateDenominator
		if !c.IsPersistent {
			denom = cfg.TemporaryRentRateDenominator
		}

		currentMinusOne := int64(currentLedgerSeq) - 1
		extensionLedgers := zeroFloorI64(int64(c.NewLiveUntilLedger) - maxI64(int64(c.OldLiveUntilLedger), currentMinusOne))
		extComponent := ceilDiv(
			saturatingMul(saturatingMul(int64(c.OldSizeBytes), cfg.FeePerRent1KB), extensionLedgers),
			saturatingMul(denom, 1024),
		)

		deltaSize := zeroFloorI64(int64(c.NewSizeBytes) - int64(c.OldSizeBytes))
		sizeLedgers := zeroFloorI64(int64(c.NewLiveUntilLedger) - int64(currentLedgerSeq) + 1)
		sizeComponent := ceilDiv(
			saturatingMul(saturatingMul(deltaSize, cfg.FeePerRent1KB), sizeLedgers),
			saturatingMul(denom, 1024),
		)

		entryFee := saturatingAdd(extComponent, sizeComponent)
		if c.IsCodeEntry {
			entryFee /= codeEntryRentDivisor
		}
		total = saturatingAdd(total, entryFee)
	}

	if len(changes) > 0 {
		entries := int64(len(changes))
		ttlWriteEntryFee := saturatingMul(entries, cfg.FeePerWriteEntry)
		ttlWriteByteFee := ceilDiv(saturatingMul(saturatingMul(entries, int64(TTLEntrySize())), cfg.FeePerWrite1KB), 1024)
		total = saturatingAdd(total, saturatingAdd(ttlWriteEntryFee, ttlWriteByteFee))
	}

	return total
}
