package ttl

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/fee"
	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/rentsize"
	"github.com/withobsrvr/soroban-invocation-core/storage"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// RestoreResult is the output of Restore: a read-write footprint of the keys
// actually restored (sorted), the rent-change vector those restores
// produced, and the disk-read/write byte counts (equal per spec.md §4.10).
type RestoreResult struct {
	Footprint     *storage.Footprint
	Changes       []fee.LedgerEntryRentChange
	DiskReadBytes uint64
	WriteBytes    uint64
}

// Restore implements spec.md §4.10's restore simulation helper. Every key
// must be persistent (restoring a temporary entry makes no sense — it was
// simply dropped, not archived); a missing entry is an error; a still-live
// entry (live_until ≥ current) is skipped rather than restored.
func Restore(keys []xdr.LedgerKey, snapshot storage.SnapshotSource, currentLedger, minPersistentLiveUntil uint32, estimator rentsize.ModuleCostEstimator) (*RestoreResult, error) {
	if estimator == nil {
		estimator = rentsize.ZeroEstimator{}
	}

	var restoredKeys []xdr.LedgerKey
	var changes []fee.LedgerEntryRentChange
	var totalBytes uint64
	for _, key := range keys {
		kind, durability, err := storage.ClassifyKey(key)
		if err != nil {
			return nil, err
		}
		if durability != storage.DurabilityPersistent {
			return nil, herror.New(herror.KindStorageInternal, "restore requires a persistent key, got entry kind %v with durability %v", kind, durability)
		}

		slot, err := snapshot.Get(key)
		if err != nil {
			return nil, err
		}
		if !slot.Present {
			return nil, herror.New(herror.KindStorageMissing, "restore: no archived entry found for key")
		}
		if slot.HasLiveUntil && !IsExpired(slot.LiveUntil, currentLedger) {
			continue
		}

		encoded, err := xdrcodec.Encode(slot.Entry)
		if err != nil {
			return nil, err
		}
		size, err := rentsize.SizeForRent(slot.Entry, uint32(len(encoded)), estimator)
		if err != nil {
			return nil, err
		}
		totalBytes += uint64(len(encoded))

		changes = append(changes, fee.LedgerEntryRentChange{
			IsPersistent:       true,
			IsCodeEntry:        kind == storage.EntryKindContractCode,
			OldSizeBytes:       0,
			NewSizeBytes:       size,
			OldLiveUntilLedger: 0,
			NewLiveUntilLedger: minPersistentLiveUntil,
		})
		restoredKeys = append(restoredKeys, key)
	}

	fp, err := storage.BuildFootprint(nil, restoredKeys)
	if err != nil {
		return nil, err
	}
	return &RestoreResult{Footprint: fp, Changes: changes, DiskReadBytes: totalBytes, WriteBytes: totalBytes}, nil
}
