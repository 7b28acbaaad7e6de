package ttl

import (
	"math"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/fee"
	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/rentsize"
	"github.com/withobsrvr/soroban-invocation-core/storage"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// ExtendResult is the output of ExtendTTL: a read-only footprint of the keys
// actually extended (sorted, per spec.md §4.10) plus the rent-change vector
// those extensions produced.
type ExtendResult struct {
	Footprint *storage.Footprint
	Changes   []fee.LedgerEntryRentChange
}

// ExtendTTL implements spec.md §4.10's extend-TTL simulation helper. For
// each key: durability is required (ClassifyKey rejects non-durable kinds
// here); a missing entry is skipped; a key whose live_until already meets or
// exceeds the requested extension is skipped; an already-expired entry is an
// error (extending a dead entry isn't meaningful — restore it first).
func ExtendTTL(keys []xdr.LedgerKey, snapshot storage.SnapshotSource, extendTo, currentLedger uint32, estimator rentsize.ModuleCostEstimator) (*ExtendResult, error) {
	if estimator == nil {
		estimator = rentsize.ZeroEstimator{}
	}
	newLiveUntil := saturatingAddU32(currentLedger, extendTo)

	var extendedKeys []xdr.LedgerKey
	var changes []fee.LedgerEntryRentChange
	for _, key := range keys {
		kind, durability, err := storage.ClassifyKey(key)
		if err != nil {
			return nil, err
		}
		if durability == storage.DurabilityNone {
			return nil, herror.New(herror.KindStorageInternal, "extend_ttl requires a durable key, got entry kind %v", kind)
		}

		slot, err := snapshot.Get(key)
		if err != nil {
			return nil, err
		}
		if !slot.Present {
			continue
		}
		if slot.HasLiveUntil && slot.LiveUntil >= newLiveUntil {
			continue
		}
		if !slot.HasLiveUntil || IsExpired(slot.LiveUntil, currentLedger) {
			return nil, herror.New(herror.KindStorageInternal, "cannot extend an expired or TTL-less entry; restore it first")
		}

		encoded, err := xdrcodec.Encode(slot.Entry)
		if err != nil {
			return nil, err
		}
		size, err := rentsize.SizeForRent(slot.Entry, uint32(len(encoded)), estimator)
		if err != nil {
			return nil, err
		}

		changes = append(changes, fee.LedgerEntryRentChange{
			IsPersistent:       durability == storage.DurabilityPersistent,
			IsCodeEntry:        kind == storage.EntryKindContractCode,
			OldSizeBytes:       size,
			NewSizeBytes:       size,
			OldLiveUntilLedger: slot.LiveUntil,
			NewLiveUntilLedger: newLiveUntil,
		})
		extendedKeys = append(extendedKeys, key)
	}

	fp, err := storage.BuildFootprint(extendedKeys, nil)
	if err != nil {
		return nil, err
	}
	return &ExtendResult{Footprint: fp, Changes: changes}, nil
}

func saturatingAddU32(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(sum)
}
