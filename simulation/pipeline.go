// Package simulation implements the recording-mode invocation pipeline of
// spec.md §4.7: the same host-session machinery as the enforcing pipeline
// (package invocation), but run against a footprint that grows on demand
// and a snapshot source supplied directly, to predict the resources and
// change set a subsequent enforcing run would need.
package simulation

import (
	"errors"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/budget"
	"github.com/withobsrvr/soroban-invocation-core/changeset"
	"github.com/withobsrvr/soroban-invocation-core/fee"
	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/host"
	"github.com/withobsrvr/soroban-invocation-core/invocation"
	"github.com/withobsrvr/soroban-invocation-core/rentsize"
	"github.com/withobsrvr/soroban-invocation-core/storage"
	"github.com/withobsrvr/soroban-invocation-core/ttl"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// RecordingInput bundles every input to the recording pipeline. Unlike
// EnforcingInput it carries a live storage.SnapshotSource instead of a
// pre-decoded entry/TTL list (spec.md §4.7: "snapshot source is supplied
// directly") and has no footprint/auth-entries to decode up front — both
// grow out of the invocation itself.
type RecordingInput struct {
	Budget *budget.Budget
	VM     host.VM

	EncodedHostFunction  []byte
	EncodedSourceAccount []byte
	Snapshot             storage.SnapshotSource
	LedgerInfo           host.LedgerInfo
	PRNGSeed             []byte
	DiagnosticLevel      host.DiagnosticLevel
	DisableNonRootAuth   bool

	TraceHook   host.TraceHook
	ModuleCache host.ModuleCache
	Estimator   rentsize.ModuleCostEstimator

	FeeConfig               fee.FeeConfiguration
	RentFeeConfig           fee.RentFeeConfiguration
	TransactionSizeBytes    uint32
	ContractEventsSizeBytes uint32

	// Adjustment pads the recording run's exact measurements before they are
	// priced or handed to a subsequent enforcing run (see resources.go). The
	// zero value is NOT the identity: callers that want unpadded output must
	// pass NoAdjustments() explicitly.
	Adjustment SimulationAdjustmentConfig

	// SignatureExpirationLedger stamps every synthesized address-credentialed
	// auth entry (spec.md §4.7's synthesized entries carry a signature
	// expiration like any other SorobanAddressCredentials).
	SignatureExpirationLedger uint32
}

// RecordingResult is the recording pipeline's prediction: a resources
// struct and restored-entry index list shaped exactly like what a
// subsequent enforcing run's EnforcingInput wants, plus the change set,
// events, fees, and synthesized auth entries the recording run itself
// produced.
type RecordingResult struct {
	CarriedError       error
	EncodedReturnValue []byte
	Changes            []changeset.Change
	EncodedEvents      [][]byte
	DiagnosticEvents   []xdr.DiagnosticEvent

	PredictedResources     invocation.Resources
	RestoredRWEntryIndices []uint32
	SynthesizedAuthEntries []SynthesizedAuthEntry

	ResourceFeeNonRefundable int64
	ResourceFeeRefundable    int64
	RentFee                  int64
}

// Invoke runs the recording-mode pipeline of spec.md §4.7 end to end. Its
// abort/carry split mirrors invocation.Invoke exactly: a budget-exceeded or
// internal-inconsistency error aborts outright; a VM/logic error comes back
// inside RecordingResult.CarriedError.
func Invoke(in RecordingInput) (*RecordingResult, error) {
	b := in.Budget
	currentLedger := in.LedgerInfo.SequenceNumber

	minPersistentLiveUntil, err := invocation.MinLiveUntilLedgerChecked(currentLedger, in.LedgerInfo.MinPersistentEntryTTL)
	if err != nil {
		return nil, err
	}

	storageMap := storage.NewRecordingMap(in.Snapshot)

	session := host.New(b, storageMap, in.VM)
	if in.TraceHook != nil {
		if err := session.InstallTraceHook(in.TraceHook); err != nil {
			return nil, err
		}
	}
	if in.ModuleCache != nil {
		if err := session.InstallModuleCache(in.ModuleCache); err != nil {
			return nil, err
		}
	}
	if err := session.SwitchToRecordingAuth(in.DisableNonRootAuth); err != nil {
		return nil, err
	}

	hostFn, err := xdrcodec.DecodeMetered[xdr.HostFunction, *xdr.HostFunction](b, in.EncodedHostFunction, xdrcodec.DefaultLimits)
	if err != nil {
		return nil, err
	}
	sourceAccount, err := xdrcodec.DecodeMetered[xdr.AccountId, *xdr.AccountId](b, in.EncodedSourceAccount, xdrcodec.DefaultLimits)
	if err != nil {
		return nil, err
	}
	if err := session.SetSourceAccount(sourceAccount); err != nil {
		return nil, err
	}
	if err := session.SetLedgerInfo(in.LedgerInfo); err != nil {
		return nil, err
	}
	seed, err := host.ParsePRNGSeed(in.PRNGSeed)
	if err != nil {
		return nil, err
	}
	if err := session.SetPRNGSeed(seed); err != nil {
		return nil, err
	}
	if err := session.SetDiagnosticLevel(in.DiagnosticLevel); err != nil {
		return nil, err
	}

	returnValue, invokeErr := session.InvokeFunction(hostFn)

	finalStorage, events, diagnosticEvents, err := session.Finish()
	if err != nil {
		return nil, err
	}

	result := &RecordingResult{DiagnosticEvents: diagnosticEvents}

	if invokeErr != nil {
		if abortsPipeline(invokeErr) {
			return nil, invokeErr
		}
		result.CarriedError = invokeErr
		return result, nil
	}

	encodedReturn, err := xdrcodec.EncodeMetered(b, returnValue)
	if err != nil {
		return nil, err
	}
	result.EncodedReturnValue = encodedReturn

	fp := finalStorage.Footprint()

	restoredKeys, restoredIndices, diskReadBytes, diskReadEntries, err := walkFootprintAgainstSnapshot(b, fp, in.Snapshot, currentLedger)
	if err != nil {
		return nil, err
	}
	result.RestoredRWEntryIndices = restoredIndices

	changes, err := changeset.Build(b, finalStorage, changeset.Config{
		InitialSnapshot:        in.Snapshot,
		InitialTTLMap:          nil,
		RestoredKeys:           restoredKeys,
		CurrentLedger:          currentLedger,
		MinPersistentLiveUntil: minPersistentLiveUntil,
		Mode:                   storage.ModeRecording,
		Estimator:              in.Estimator,
	})
	if err != nil {
		return nil, err
	}
	result.Changes = changes

	encodedEvents := make([][]byte, 0, len(events))
	var eventsSize uint32
	for _, event := range events {
		encoded, err := xdrcodec.EncodeMetered(b, event)
		if err != nil {
			return nil, err
		}
		encodedEvents = append(encodedEvents, encoded)
		eventsSize += uint32(len(encoded))
	}
	result.EncodedEvents = encodedEvents

	result.SynthesizedAuthEntries = synthesizeAuthEntries(session.RecordedAuthPayloads(), in.SignatureExpirationLedger)

	var writeEntries, writeBytes uint32
	for _, c := range changes {
		if !c.ReadOnly && c.EncodedNewValue != nil {
			writeEntries++
			writeBytes += uint32(len(c.EncodedNewValue))
		}
	}

	predicted := predictedResources(fp, b)
	predicted.DiskReadByteLimit = diskReadBytes
	predicted.WriteByteLimit = writeBytes
	in.Adjustment.AdjustResources(&predicted)
	result.PredictedResources = predicted

	// disk_read_entries (resources.rs::compute_adjusted_transaction_resources):
	// every non-Soroban footprint key plus every auto-restored key, already
	// computed by the footprint walk above.
	rentChanges := changeset.ExtractRentChanges(changes)

	contractEventsSize := in.ContractEventsSizeBytes
	if contractEventsSize == 0 {
		contractEventsSize = eventsSize
	}

	txSizeBytes := in.TransactionSizeBytes
	if txSizeBytes == 0 {
		estimated, estErr := EstimateTransactionSize(predicted.ReadOnly, predicted.ReadWrite, restoredIndices, in.Adjustment)
		if estErr != nil {
			return nil, estErr
		}
		txSizeBytes = estimated
	}

	txResources := fee.TransactionResources{
		Instructions:            predicted.InstructionLimit,
		DiskReadEntries:         diskReadEntries,
		WriteEntries:            writeEntries,
		DiskReadBytes:           predicted.DiskReadByteLimit,
		WriteBytes:              writeBytes,
		ContractEventsSizeBytes: contractEventsSize,
		TransactionSizeBytes:    txSizeBytes,
	}
	nonRefundable, _ := fee.ComputeTransactionResourceFee(txResources, in.FeeConfig)
	rentFee := fee.ComputeRentFee(rentChanges, in.RentFeeConfig, currentLedger)
	total := ComputeResourceFee(txResources, in.FeeConfig, rentChanges, in.RentFeeConfig, currentLedger, in.Adjustment)

	// resources.rs::compute_resource_fee adjusts the refundable-fee-plus-
	// rent-fee sum as a single quantity, not each term independently; the
	// non-refundable component passes through ComputeResourceFee unchanged,
	// so the adjusted refundable-plus-rent sum is just the remainder.
	result.ResourceFeeNonRefundable = nonRefundable
	result.ResourceFeeRefundable = total - nonRefundable
	result.RentFee = rentFee

	return result, nil
}

// walkFootprintAgainstSnapshot implements spec.md §4.7's post-invocation
// walk: disk_read_bytes sums the encoded size of non-Soroban entries and of
// auto-restored persistent entries (Account/Trustline/Other entries are
// always "on disk"; ContractData/ContractCode only when auto-restored).
// restored_rw_entry_indices is built by walking the footprint in
// declaration order exactly as Footprint.RWKeyAt does, so ordinals line up
// with a subsequent enforcing run's own RWKeyAt indexing.
func walkFootprintAgainstSnapshot(b *budget.Budget, fp *storage.Footprint, snapshot storage.SnapshotSource, currentLedger uint32) (restoredKeys map[string]bool, restoredIndices []uint32, diskReadBytes uint32, diskReadEntries uint32, err error) {
	restoredKeys = make(map[string]bool)
	rwOrdinal := -1
	for _, s := range fp.Order() {
		key, ok := fp.KeyFor(s)
		if !ok {
			return nil, nil, 0, 0, herror.New(herror.KindStorageInternal, "footprint key %q missing its xdr.LedgerKey", s)
		}
		access, _ := fp.AccessOf(s)
		if access == storage.AccessReadWrite {
			rwOrdinal++
		}

		kind, durability, err := storage.ClassifyKey(key)
		if err != nil {
			return nil, nil, 0, 0, err
		}

		slot, err := snapshot.Get(key)
		if err != nil {
			return nil, nil, 0, 0, err
		}

		autoRestored := durability == storage.DurabilityPersistent && slot.Present && slot.HasLiveUntil && ttl.IsExpired(slot.LiveUntil, currentLedger)
		if autoRestored && access == storage.AccessReadWrite {
			restoredKeys[s] = true
			restoredIndices = append(restoredIndices, uint32(rwOrdinal))
		}

		nonSoroban := kind != storage.EntryKindContractData && kind != storage.EntryKindContractCode
		if (nonSoroban || autoRestored) && slot.Present {
			encoded, encErr := xdrcodec.EncodeMetered(b, slot.Entry)
			if encErr != nil {
				return nil, nil, 0, 0, encErr
			}
			diskReadBytes += uint32(len(encoded))
			diskReadEntries++
		}
	}
	return restoredKeys, restoredIndices, diskReadBytes, diskReadEntries, nil
}

// predictedResources reads the recording footprint's final read-only/
// read-write key lists back out, in original declaration order, so a
// subsequent enforcing run's footprint (and therefore its RWKeyAt
// ordinals) matches this recording run exactly.
func predictedResources(fp *storage.Footprint, b *budget.Budget) invocation.Resources {
	var readOnly, readWrite []xdr.LedgerKey
	for _, s := range fp.Order() {
		key, ok := fp.KeyFor(s)
		if !ok {
			continue
		}
		mode, _ := fp.AccessOf(s)
		if mode == storage.AccessReadWrite {
			readWrite = append(readWrite, key)
		} else {
			readOnly = append(readOnly, key)
		}
	}
	return invocation.Resources{
		ReadOnly:         readOnly,
		ReadWrite:        readWrite,
		InstructionLimit: uint32(b.CPUConsumed()),
	}
}

// abortsPipeline mirrors invocation's classification exactly: budget
// exhaustion and herror's AbortsPipeline() kinds abort the pipeline; any
// other error is a VM/logic failure carried in the result.
func abortsPipeline(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, budget.ErrExceeded) {
		return true
	}
	var herr *herror.Error
	if errors.As(err, &herr) {
		return herr.AbortsPipeline()
	}
	return false
}
