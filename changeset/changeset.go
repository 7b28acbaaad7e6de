// Package changeset implements the change-set builder of spec.md §4.8: for
// each footprint key, compare the initial snapshot against the final
// storage map and emit a ledger-entry change record carrying both the
// value diff and the TTL/rent bookkeeping the fee engine needs.
package changeset

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/budget"
	"github.com/withobsrvr/soroban-invocation-core/fee"
	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/rentsize"
	"github.com/withobsrvr/soroban-invocation-core/storage"
	"github.com/withobsrvr/soroban-invocation-core/ttl"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// TTLChange is the optional TTL/rent-bookkeeping half of a Change, present
// only for durable (ContractData/ContractCode) entries (spec.md §3).
type TTLChange struct {
	KeyHash      []byte
	EntryKind    storage.EntryKind
	Durability   storage.Durability
	OldLiveUntil uint32
	NewLiveUntil uint32
}

// Change is spec.md §3's ledger-entry change record.
type Change struct {
	ReadOnly                 bool
	EncodedKey               []byte
	OldEntrySizeBytesForRent uint32
	EncodedNewValue          []byte // nil ⇒ unchanged, deleted, or read-only
	NewEntrySizeBytesForRent uint32
	TTLChange                *TTLChange
}

// Config groups the builder's fixed, per-invocation parameters.
type Config struct {
	InitialSnapshot        storage.SnapshotSource
	InitialTTLMap          *storage.TTLMap
	RestoredKeys           map[string]bool
	CurrentLedger          uint32
	MinPersistentLiveUntil uint32
	Mode                   storage.Mode
	Estimator              rentsize.ModuleCostEstimator
}

// Build implements spec.md §4.8 steps 1-5: one Change per footprint key, in
// the same sorted-by-canonical-encoding order the rest of the pipeline
// iterates storage in (spec.md §5). Step 6 (recording-mode footprint-only
// synthesis for keys the recording footprint grew to include but that never
// touched the storage map at all) is not this function's concern — it
// belongs to whichever collaborator owns the growing recording footprint;
// see SynthesizeFootprintOnlyChange.
func Build(b *budget.Budget, finalStorage *storage.Map, cfg Config) ([]Change, error) {
	if cfg.Estimator == nil {
		cfg.Estimator = rentsize.ZeroEstimator{}
	}
	fp := finalStorage.Footprint()
	keys := fp.Keys()
	changes := make([]Change, 0, len(keys))

	for _, s := range keys {
		key, ok := fp.KeyFor(s)
		if !ok {
			return nil, herror.New(herror.KindStorageInternal, "footprint key %q missing its xdr.LedgerKey", s)
		}
		change, err := buildOne(b, key, s, finalStorage, cfg)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func buildOne(b *budget.Budget, key xdr.LedgerKey, s string, finalStorage *storage.Map, cfg Config) (Change, error) {
	encodedKey, err := xdrcodec.EncodeMetered(b, key)
	if err != nil {
		return Change{}, err
	}

	kind, durability, err := storage.ClassifyKey(key)
	if err != nil {
		return Change{}, err
	}
	durable := kind == storage.EntryKindContractData || kind == storage.EntryKindContractCode

	change := Change{EncodedKey: encodedKey}

	var ttlChange *TTLChange
	if durable {
		keyHash, err := ttlKeyHash(b, s, key, cfg.InitialTTLMap)
		if err != nil {
			return Change{}, err
		}
		ttlChange = &TTLChange{KeyHash: keyHash, EntryKind: kind, Durability: durability}
	}

	oldSlot, err := cfg.InitialSnapshot.Get(key)
	if err != nil {
		return Change{}, err
	}
	var oldSize uint32
	if oldSlot.Present {
		encodedOld, err := xdrcodec.EncodeMetered(b, oldSlot.Entry)
		if err != nil {
			return Change{}, err
		}
		oldSize, err = rentsize.SizeForRent(oldSlot.Entry, uint32(len(encodedOld)), cfg.Estimator)
		if err != nil {
			return Change{}, err
		}
	}

	if durable {
		if oldSlot.Present && !oldSlot.HasLiveUntil {
			return Change{}, herror.New(herror.KindStorageInternal, "durable entry missing a live-until in the initial snapshot")
		}
		if oldSlot.HasLiveUntil {
			ttlChange.OldLiveUntil = oldSlot.LiveUntil
		}

		// Recording-mode quirk (spec.md §4.8 step 3): an already-expired
		// temporary entry is treated as nonexistent for rent purposes.
		// Persistent auto-restore is handled via the restored-key set
		// instead, not here.
		if cfg.Mode == storage.ModeRecording && durability == storage.DurabilityTemporary &&
			oldSlot.HasLiveUntil && ttl.IsExpired(oldSlot.LiveUntil, cfg.CurrentLedger) {
			ttlChange.OldLiveUntil = 0
			oldSize = 0
		}
	}
	change.OldEntrySizeBytesForRent = oldSize

	finalSlot, finalOK := finalStorage.Get(s)
	if !finalOK {
		return Change{}, herror.New(herror.KindStorageInternal, "key %q not present in final storage", s)
	}

	if durable {
		newLiveUntil := ttlChange.OldLiveUntil
		if finalSlot.Present && finalSlot.HasLiveUntil && finalSlot.LiveUntil > newLiveUntil {
			newLiveUntil = finalSlot.LiveUntil
		}
		ttlChange.NewLiveUntil = newLiveUntil
	}

	access, ok := finalStorage.Footprint().AccessOf(s)
	if !ok {
		return Change{}, herror.New(herror.KindStorageInternal, "key %q absent from footprint", s)
	}

	switch access {
	case storage.AccessReadOnly:
		change.ReadOnly = true
	case storage.AccessReadWrite:
		if finalSlot.Present {
			encodedNew, err := xdrcodec.EncodeMetered(b, finalSlot.Entry)
			if err != nil {
				return Change{}, err
			}
			newSize, err := rentsize.SizeForRent(finalSlot.Entry, uint32(len(encodedNew)), cfg.Estimator)
			if err != nil {
				return Change{}, err
			}
			change.EncodedNewValue = encodedNew
			change.NewEntrySizeBytesForRent = newSize
		}
		if cfg.RestoredKeys[s] {
			change.OldEntrySizeBytesForRent = 0
			if ttlChange != nil {
				ttlChange.OldLiveUntil = 0
				newLiveUntil := ttlChange.NewLiveUntil
				if newLiveUntil < cfg.MinPersistentLiveUntil {
					newLiveUntil = cfg.MinPersistentLiveUntil
				}
				ttlChange.NewLiveUntil = newLiveUntil
			}
		}
	}

	change.TTLChange = ttlChange
	return change, nil
}

func ttlKeyHash(b *budget.Budget, s string, key xdr.LedgerKey, initial *storage.TTLMap) ([]byte, error) {
	if initial != nil {
		if rec, ok := initial.Lookup(s); ok {
			return rec.KeyHash, nil
		}
	}
	encodedKey, err := xdrcodec.CanonicalKeyBytes(key)
	if err != nil {
		return nil, err
	}
	hash, err := xdrcodec.ContentHashMetered(b, encodedKey)
	if err != nil {
		return nil, err
	}
	return hash[:], nil
}

// SynthesizeFootprintOnlyChange builds the minimal change record spec.md
// §4.8 step 6 synthesizes in recording mode for a footprint key that never
// touched the storage map at all. It is non-consensus work, so a caller runs
// it under budget.WithShadow; no pipeline in this repository calls it.
func SynthesizeFootprintOnlyChange(key xdr.LedgerKey) (Change, error) {
	encodedKey, err := xdrcodec.Encode(key)
	if err != nil {
		return Change{}, err
	}
	return Change{ReadOnly: true, EncodedKey: encodedKey}, nil
}

// ExtractRentChanges implements spec.md §4.8's rent-change extraction:
// filter to changes with a TTLChange whose new_live_until exceeds
// old_live_until, or whose size grew. new_size defaults to old_size when no
// new value was written (unchanged, deleted, or read-only).
func ExtractRentChanges(changes []Change) []fee.LedgerEntryRentChange {
	var out []fee.LedgerEntryRentChange
	for _, c := range changes {
		if c.TTLChange == nil {
			continue
		}
		newSize := c.OldEntrySizeBytesForRent
		if c.EncodedNewValue != nil {
			newSize = c.NewEntrySizeBytesForRent
		}
		if c.TTLChange.NewLiveUntil <= c.TTLChange.OldLiveUntil && newSize <= c.OldEntrySizeBytesForRent {
			continue
		}
		out = append(out, fee.LedgerEntryRentChange{
			IsPersistent:       c.TTLChange.Durability == storage.DurabilityPersistent,
			IsCodeEntry:        c.TTLChange.EntryKind == storage.EntryKindContractCode,
			OldSizeBytes:       c.OldEntrySizeBytesForRent,
			NewSizeBytes:       newSize,
			OldLiveUntilLedger: c.TTLChange.OldLiveUntil,
			NewLiveUntilLedger: c.TTLChange.NewLiveUntil,
		})
	}
	return out
}
