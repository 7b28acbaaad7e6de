package storage

import "github.com/stellar/go/xdr"

// Slot is a storage-map value: spec.md §3's `Option<(entry, live_until?)>`.
// Present is false to denote "declared but absent" (the None case).
type Slot struct {
	Present      bool
	Entry        xdr.LedgerEntry
	LiveUntil    uint32
	HasLiveUntil bool
}

// SnapshotSource is the read-only pre-invocation ledger view of spec.md §6:
// "get(key) → Option<(entry, live_until?)>. Must be pure and deterministic;
// repeated calls yield equal results." Implementations must not block on I/O
// — callers pre-materialize.
type SnapshotSource interface {
	Get(key xdr.LedgerKey) (Slot, error)
}

// MemorySnapshot is an in-memory SnapshotSource keyed by canonical key
// string, suitable for tests and for the initial-snapshot clone the
// enforcing pipeline takes of its own freshly-built storage map.
type MemorySnapshot struct {
	slots map[string]Slot
}

// NewMemorySnapshot builds an empty snapshot.
func NewMemorySnapshot() *MemorySnapshot {
	return &MemorySnapshot{slots: make(map[string]Slot)}
}

// Put installs a slot for key, keyed by its canonical encoding.
func (s *MemorySnapshot) Put(key xdr.LedgerKey, slot Slot) error {
	k, err := CanonicalString(key)
	if err != nil {
		return err
	}
	s.slots[k] = slot
	return nil
}

// Get implements SnapshotSource.
func (s *MemorySnapshot) Get(key xdr.LedgerKey) (Slot, error) {
	k, err := CanonicalString(key)
	if err != nil {
		return Slot{}, err
	}
	slot, ok := s.slots[k]
	if !ok {
		return Slot{Present: false}, nil
	}
	return slot, nil
}

// CloneFromMap builds a MemorySnapshot from a StorageMap's current contents,
// used by the enforcing pipeline to freeze an "initial snapshot" before
// invocation (spec.md §4.6 step 5).
func CloneFromMap(m *Map) *MemorySnapshot {
	snap := NewMemorySnapshot()
	for k, slot := range m.slots {
		snap.slots[k] = slot
	}
	return snap
}
