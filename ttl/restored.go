package ttl

import (
	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/storage"
)

// BuildRestoredKeySet implements spec.md §4.6 step 2: each index in
// restoredRWIndices must reference a valid ordinal position in the
// footprint's read-write key list, in the *original declaration order* the
// resources struct listed them in — not the sorted order the rest of the
// pipeline iterates storage in. This is grounded directly on
// build_restored_key_set, which indexes resources.footprint.read_write by
// raw ordinal; storage.Footprint.RWKeyAt preserves that order for exactly
// this call site.
func BuildRestoredKeySet(fp *storage.Footprint, restoredRWIndices []uint32) (map[string]bool, error) {
	set := make(map[string]bool, len(restoredRWIndices))
	for _, idx := range restoredRWIndices {
		key, ok := fp.RWKeyAt(int(idx))
		if !ok {
			return nil, herror.New(herror.KindStorageInternal, "restored_rw_entry_indices entry %d does not reference a valid read-write footprint slot", idx)
		}
		set[key] = true
	}
	return set, nil
}
