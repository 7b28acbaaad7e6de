package storage

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/herror"
)

// NewRecordingMap builds a storage map for recording mode (spec.md §4.7):
// its footprint starts empty and grows as the VM collaborator touches keys,
// falling through to snapshot on a miss. Mirrors original_source's
// Storage::with_recording_footprint(snapshot).
func NewRecordingMap(snapshot SnapshotSource) *Map {
	return &Map{
		fp:        newGrowableFootprint(),
		slots:     make(map[string]Slot),
		recording: true,
		snapshot:  snapshot,
	}
}

// GetByKey reads a ledger key through the map's footprint discipline: an
// enforcing map rejects a key outside its sealed footprint; a recording map
// grows its footprint at ReadOnly access and, on first touch, fetches the
// slot from its snapshot. Used by the host session's VM collaborator, which
// operates on xdr.LedgerKey rather than canonical key strings.
func (m *Map) GetByKey(key xdr.LedgerKey) (Slot, error) {
	if m.recording {
		s, err := m.fp.Touch(key, AccessReadOnly)
		if err != nil {
			return Slot{}, err
		}
		if slot, ok := m.slots[s]; ok {
			return slot, nil
		}
		slot, err := m.snapshot.Get(key)
		if err != nil {
			return Slot{}, err
		}
		m.slots[s] = slot
		return slot, nil
	}

	s, err := CanonicalString(key)
	if err != nil {
		return Slot{}, err
	}
	if !m.fp.Contains(s) {
		return Slot{}, herror.New(herror.KindStorageExceeded, "access to a key outside the sealed footprint")
	}
	slot, ok := m.slots[s]
	if !ok {
		return Slot{Present: false}, nil
	}
	return slot, nil
}

// SetByKey writes a ledger key through the same discipline as GetByKey: an
// enforcing map rejects a write to a key that isn't declared ReadWrite; a
// recording map grows/upgrades its footprint to ReadWrite on demand.
func (m *Map) SetByKey(key xdr.LedgerKey, slot Slot) error {
	if m.recording {
		s, err := m.fp.Touch(key, AccessReadWrite)
		if err != nil {
			return err
		}
		m.slots[s] = slot
		return nil
	}

	s, err := CanonicalString(key)
	if err != nil {
		return err
	}
	mode, ok := m.fp.AccessOf(s)
	if !ok {
		return herror.New(herror.KindStorageExceeded, "write to a key outside the sealed footprint")
	}
	if mode != AccessReadWrite {
		return herror.New(herror.KindStorageExceeded, "write to a key declared ReadOnly")
	}
	m.slots[s] = slot
	return nil
}
