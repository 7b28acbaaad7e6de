package invocation

import (
	"errors"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/budget"
	"github.com/withobsrvr/soroban-invocation-core/changeset"
	"github.com/withobsrvr/soroban-invocation-core/fee"
	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/host"
	"github.com/withobsrvr/soroban-invocation-core/rentsize"
	"github.com/withobsrvr/soroban-invocation-core/storage"
	"github.com/withobsrvr/soroban-invocation-core/ttl"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// EnforcingInput bundles every input to the enforcing pipeline (spec.md
// §4.6): "all as opaque bytes except the ledger-info struct, budget, and
// flags."
type EnforcingInput struct {
	Budget *budget.Budget
	VM     host.VM

	EncodedHostFunction     []byte
	Resources               Resources
	RestoredRWEntryIndices  []uint32
	EncodedSourceAccount    []byte
	EncodedAuthEntries      [][]byte
	LedgerInfo              host.LedgerInfo
	Entries                 []storage.EncodedEntryTTLPair
	PRNGSeed                []byte
	DiagnosticLevel         host.DiagnosticLevel
	TraceHook               host.TraceHook
	ModuleCache             host.ModuleCache
	Estimator               rentsize.ModuleCostEstimator
	FeeConfig               fee.FeeConfiguration
	RentFeeConfig           fee.RentFeeConfiguration
	TransactionSizeBytes    uint32
	ContractEventsSizeBytes uint32
}

// EnforcingResult is the full result of one enforcing-mode invocation
// (spec.md §4.6 step 9): a carried VM/logic error still yields a
// well-formed record with an empty change set and no events, per the
// "VM/logic errors are carried inside the result" rule.
type EnforcingResult struct {
	CarriedError       error
	EncodedReturnValue []byte
	Changes            []changeset.Change
	EncodedEvents      [][]byte
	DiagnosticEvents   []xdr.DiagnosticEvent

	ResourceFeeNonRefundable int64
	ResourceFeeRefundable    int64
	RentFee                  int64
}

// Invoke runs the enforcing-mode pipeline of spec.md §4.6 end to end.
// Returned errors abort the pipeline outright (budget exhaustion or an
// internal inconsistency in a decode/build step, per herror's
// AbortsPipeline); a VM/logic failure instead comes back inside
// EnforcingResult.CarriedError with no return value, changes, events or
// fees; only the diagnostic events are still filled in.
func Invoke(in EnforcingInput) (*EnforcingResult, error) {
	b := in.Budget
	currentLedger := in.LedgerInfo.SequenceNumber

	// Step 1: decode resources (already decoded by the caller; see
	// Resources' doc comment) and validate min_live_until_ledger.
	minPersistentLiveUntil, err := MinLiveUntilLedgerChecked(currentLedger, in.LedgerInfo.MinPersistentEntryTTL)
	if err != nil {
		return nil, err
	}

	// Step 3: build footprint from the resource's footprint. Done before
	// step 2 here only because BuildRestoredKeySet needs the footprint;
	// ordering within "decode resources" has no observable effect.
	fp, err := storage.BuildFootprint(in.Resources.ReadOnly, in.Resources.ReadWrite)
	if err != nil {
		return nil, err
	}

	// Step 2: build restored-key set from restored_rw_entry_indices.
	restoredKeys, err := ttl.BuildRestoredKeySet(fp, in.RestoredRWEntryIndices)
	if err != nil {
		return nil, err
	}

	// Step 4: build storage map + initial TTL map.
	storageMap, initialTTLMap, err := storage.BuildStorageMap(b, fp, in.Entries, currentLedger, storage.ModeEnforcing)
	if err != nil {
		return nil, err
	}

	// Step 5: clone to form the initial snapshot.
	initialSnapshot := storage.CloneFromMap(storageMap)

	// Step 6: create host session; install collaborators and one-shot state.
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

	authEntries := make([]xdr.SorobanAuthorizationEntry, 0, len(in.EncodedAuthEntries))
	for _, encoded := range in.EncodedAuthEntries {
		entry, err := xdrcodec.DecodeMetered[xdr.SorobanAuthorizationEntry, *xdr.SorobanAuthorizationEntry](b, encoded, xdrcodec.DefaultLimits)
		if err != nil {
			return nil, err
		}
		authEntries = append(authEntries, entry)
	}
	if err := session.SetAuthEntries(authEntries); err != nil {
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

	// Step 7: invoke.
	returnValue, invokeErr := session.InvokeFunction(hostFn)

	// Step 8: finalize — always runs, win or lose.
	finalStorage, events, diagnosticEvents, err := session.Finish()
	if err != nil {
		return nil, err
	}

	result := &EnforcingResult{DiagnosticEvents: diagnosticEvents}

	if invokeErr != nil {
		if abortsPipeline(invokeErr) {
			return nil, invokeErr
		}
		// Step 9 (Err branch): empty change set, empty events.
		result.CarriedError = invokeErr
		return result, nil
	}

	// Step 9 (Ok branch): encode return value, compute change set, encode events.
	encodedReturn, err := xdrcodec.EncodeMetered(b, returnValue)
	if err != nil {
		return nil, err
	}
	result.EncodedReturnValue = encodedReturn

	changes, err := changeset.Build(b, finalStorage, changeset.Config{
		InitialSnapshot:        initialSnapshot,
		InitialTTLMap:          initialTTLMap,
		RestoredKeys:           restoredKeys,
		CurrentLedger:          currentLedger,
		MinPersistentLiveUntil: minPersistentLiveUntil,
		Mode:                   storage.ModeEnforcing,
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

	rentChanges := changeset.ExtractRentChanges(changes)
	result.RentFee = fee.ComputeRentFee(rentChanges, in.RentFeeConfig, currentLedger)

	contractEventsSize := in.ContractEventsSizeBytes
	if contractEventsSize == 0 {
		contractEventsSize = eventsSize
	}
	nonRefundable, refundable := fee.ComputeTransactionResourceFee(measuredResources(b, fp, changes, in.TransactionSizeBytes, contractEventsSize), in.FeeConfig)
	result.ResourceFeeNonRefundable = nonRefundable
	result.ResourceFeeRefundable = refundable

	return result, nil
}

// measuredResources builds the TransactionResources vector the resource fee
// prices against, from what the pipeline actually measured: instructions
// from the consumed CPU counter, entry/byte counts from the change set (fp
// is not consulted). Transaction-size and contract-events-size are envelope-level
// measurements outside this core's domain (non-goal: wire encoding of the
// surrounding transaction), so callers may override contractEventsSize;
// transactionSizeBytes is always caller-supplied.
func measuredResources(b *budget.Budget, fp *storage.Footprint, changes []changeset.Change, transactionSizeBytes, contractEventsSizeBytes uint32) fee.TransactionResources {
	var diskReadEntries, writeEntries, diskReadBytes, writeBytes uint32
	for _, c := range changes {
		if c.OldEntrySizeBytesForRent > 0 {
			diskReadEntries++
			diskReadBytes += c.OldEntrySizeBytesForRent
		}
		if c.EncodedNewValue != nil {
			writeEntries++
			writeBytes += uint32(len(c.EncodedNewValue))
		}
	}
	return fee.TransactionResources{
		Instructions:            uint32(b.CPUConsumed()),
		DiskReadEntries:         diskReadEntries,
		WriteEntries:            writeEntries,
		DiskReadBytes:           diskReadBytes,
		WriteBytes:              writeBytes,
		ContractEventsSizeBytes: contractEventsSizeBytes,
		TransactionSizeBytes:    transactionSizeBytes,
	}
}

// abortsPipeline classifies an error from invocation as pipeline-aborting
// (budget exhaustion, internal inconsistency) vs. carried-in-result
// (VM/logic errors), per spec.md §4.6's final line.
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
