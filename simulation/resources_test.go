package simulation

import (
	"testing"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/fee"
)

func baseFeeConfig() fee.FeeConfiguration {
	return fee.FeeConfiguration{
		FeePerInstructionIncrement: 1000,
		FeePerDiskReadEntry:        2000,
		FeePerWriteEntry:           3000,
		FeePerDiskRead1KB:          4000,
		FeePerWrite1KB:             5000,
		FeePerHistorical1KB:        6000,
		FeePerContractEvent1KB:     7000,
		FeePerTransactionSize1KB:   8000,
	}
}

func baseRentFeeConfig() fee.RentFeeConfiguration {
	return fee.RentFeeConfiguration{
		FeePerWriteEntry:              10,
		FeePerRent1KB:                 1000,
		FeePerWrite1KB:                500,
		PersistentRentRateDenominator: 10_000,
		TemporaryRentRateDenominator:  100_000,
	}
}

func TestAdjustU32ZeroStaysZero(t *testing.T) {
	f := SimulationAdjustmentFactor{AdditiveFactor: 100, MultiplicativeFactor: 2.0}
	if got := f.adjustU32(0); got != 0 {
		t.Errorf("expected 0 to stay 0, got %d", got)
	}
}

func TestAdjustU32PicksTheLargerAdjustment(t *testing.T) {
	additiveWins := SimulationAdjustmentFactor{AdditiveFactor: 1000, MultiplicativeFactor: 1.1}
	if got := additiveWins.adjustU32(100); got != 1100 {
		t.Errorf("expected additive to dominate: got %d, want 1100", got)
	}
	multiplicativeWins := SimulationAdjustmentFactor{AdditiveFactor: 1, MultiplicativeFactor: 3.0}
	if got := multiplicativeWins.adjustU32(100); got != 300 {
		t.Errorf("expected multiplicative to dominate: got %d, want 300", got)
	}
}

func TestNoAdjustmentsIsIdentity(t *testing.T) {
	cfg := NoAdjustments()
	if got := cfg.Instructions.adjustU32(12345); got != 12345 {
		t.Errorf("expected identity adjustment, got %d", got)
	}
	if got := cfg.RefundableFee.adjustI64(-500); got != -500 {
		t.Errorf("expected identity adjustment of a negative value, got %d", got)
	}
}

func TestComputeResourceFeeMatchesUnadjustedSumUnderNoAdjustments(t *testing.T) {
	res := fee.TransactionResources{Instructions: 100_000, DiskReadEntries: 2, WriteEntries: 1, TransactionSizeBytes: 500}
	rentChanges := []fee.LedgerEntryRentChange{{IsPersistent: true, OldSizeBytes: 100, NewSizeBytes: 100, OldLiveUntilLedger: 1000, NewLiveUntilLedger: 2000}}

	nonRefundable, refundable := fee.ComputeTransactionResourceFee(res, baseFeeConfig())
	rentFee := fee.ComputeRentFee(rentChanges, baseRentFeeConfig(), 500)
	want := nonRefundable + refundable + rentFee

	got := ComputeResourceFee(res, baseFeeConfig(), rentChanges, baseRentFeeConfig(), 500, NoAdjustments())
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestComputeResourceFeeAppliesRefundableAdjustmentToCombinedSum(t *testing.T) {
	res := fee.TransactionResources{Instructions: 100_000}
	adjustment := NoAdjustments()
	adjustment.RefundableFee = SimulationAdjustmentFactor{AdditiveFactor: 10_000}

	nonRefundable, refundable := fee.ComputeTransactionResourceFee(res, baseFeeConfig())
	got := ComputeResourceFee(res, baseFeeConfig(), nil, baseRentFeeConfig(), 500, adjustment)
	want := nonRefundable + (refundable + 10_000)
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func ledgerDataKey(salt byte) xdr.LedgerKey {
	var contractID xdr.Hash
	contractID[0] = salt
	sym := xdr.ScSymbol("k")
	return xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeContractData,
		ContractData: &xdr.LedgerKeyContractData{
			Contract:   xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &contractID},
			Key:        xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym},
			Durability: xdr.ContractDataDurabilityPersistent,
		},
	}
}

func TestEstimateTransactionSizeGrowsWithFootprintSize(t *testing.T) {
	small, err := EstimateTransactionSize([]xdr.LedgerKey{ledgerDataKey(1)}, nil, nil, NoAdjustments())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	large, err := EstimateTransactionSize([]xdr.LedgerKey{ledgerDataKey(1), ledgerDataKey(2), ledgerDataKey(3)}, nil, nil, NoAdjustments())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if large <= small {
		t.Errorf("expected a larger footprint to estimate a larger transaction size, got small=%d large=%d", small, large)
	}
}

func TestEstimateTransactionSizeCountsRestoredEntryIndices(t *testing.T) {
	base, err := EstimateTransactionSize(nil, nil, nil, NoAdjustments())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withRestores, err := EstimateTransactionSize(nil, nil, []uint32{0, 1, 2}, NoAdjustments())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := base + 3*restoredEntryIndexEncodedSize; withRestores != want {
		t.Errorf("got %d, want %d", withRestores, want)
	}
}

func TestEstimateTransactionSizeAppliesTransactionSizeAdjustment(t *testing.T) {
	adjustment := NoAdjustments()
	adjustment.TransactionSize = SimulationAdjustmentFactor{AdditiveFactor: 5000}
	unadjusted, err := EstimateTransactionSize(nil, nil, nil, NoAdjustments())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	adjusted, err := EstimateTransactionSize(nil, nil, nil, adjustment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := unadjusted + 5000; adjusted != want {
		t.Errorf("got %d, want %d", adjusted, want)
	}
}
