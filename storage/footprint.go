package storage

import (
	"sort"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/herror"
)

// AccessMode is a footprint slot's declared access, spec.md §3.
type AccessMode int

const (
	AccessReadOnly AccessMode = iota
	AccessReadWrite
)

func (m AccessMode) String() string {
	if m == AccessReadWrite {
		return "ReadWrite"
	}
	return "ReadOnly"
}

// Footprint is the declared access set of spec.md §3/§4.3: a mapping from
// ledger key to access mode, unique across both modes. Sealed footprints
// (enforcing mode) reject any access outside themselves; recording mode
// grows the same structure on demand instead, via Touch (see recording.go).
type Footprint struct {
	order  []string // canonical key string, in first-access order
	keys   map[string]xdr.LedgerKey
	access map[string]AccessMode
}

// BuildFootprint implements spec.md §4.3: given the read-only and read-write
// key lists, build the footprint map. Errors on an unsupported key kind or a
// key appearing in both lists.
func BuildFootprint(readOnly, readWrite []xdr.LedgerKey) (*Footprint, error) {
	fp := &Footprint{
		keys:   make(map[string]xdr.LedgerKey, len(readOnly)+len(readWrite)),
		access: make(map[string]AccessMode, len(readOnly)+len(readWrite)),
	}
	add := func(key xdr.LedgerKey, mode AccessMode) error {
		if _, _, err := ClassifyKey(key); err != nil {
			return err
		}
		s, err := CanonicalString(key)
		if err != nil {
			return err
		}
		if _, dup := fp.access[s]; dup {
			return herror.New(herror.KindValueInvalidInput, "key present in both read-only and read-write footprint lists")
		}
		fp.keys[s] = key
		fp.access[s] = mode
		fp.order = append(fp.order, s)
		return nil
	}
	for _, k := range readOnly {
		if err := add(k, AccessReadOnly); err != nil {
			return nil, err
		}
	}
	for _, k := range readWrite {
		if err := add(k, AccessReadWrite); err != nil {
			return nil, err
		}
	}
	return fp, nil
}

// newGrowableFootprint builds an empty footprint for recording mode, which
// Touch grows on demand rather than rejecting undeclared keys.
func newGrowableFootprint() *Footprint {
	return &Footprint{keys: make(map[string]xdr.LedgerKey), access: make(map[string]AccessMode)}
}

// Touch implements the recording footprint's on-demand growth: an access to
// a previously undeclared key adds it at the given mode; an access to an
// already-declared ReadOnly key with mode ReadWrite upgrades it in place
// (its position in declaration order is unchanged — only entries that are
// still ReadWrite at the end count toward RW ordinals, which is exactly
// what RWKeyAt's on-the-fly filter over `order` computes). A ReadWrite key
// is never downgraded by a subsequent ReadOnly access.
func (fp *Footprint) Touch(key xdr.LedgerKey, mode AccessMode) (string, error) {
	if _, _, err := ClassifyKey(key); err != nil {
		return "", err
	}
	s, err := CanonicalString(key)
	if err != nil {
		return "", err
	}
	existing, ok := fp.access[s]
	if !ok {
		fp.keys[s] = key
		fp.access[s] = mode
		fp.order = append(fp.order, s)
		return s, nil
	}
	if mode == AccessReadWrite && existing == AccessReadOnly {
		fp.access[s] = AccessReadWrite
	}
	return s, nil
}

// Len reports the number of declared keys.
func (fp *Footprint) Len() int { return len(fp.order) }

// Contains reports whether a key is declared, by canonical string.
func (fp *Footprint) Contains(s string) bool {
	_, ok := fp.access[s]
	return ok
}

// AccessOf returns the declared access mode for a canonical key string.
func (fp *Footprint) AccessOf(s string) (AccessMode, bool) {
	m, ok := fp.access[s]
	return m, ok
}

// KeyFor returns the original xdr.LedgerKey for a canonical key string.
func (fp *Footprint) KeyFor(s string) (xdr.LedgerKey, bool) {
	k, ok := fp.keys[s]
	return k, ok
}

// Order returns the declared keys in first-access (declaration) order —
// the order RWKeyAt/ReadWriteKeys walk internally, exposed for collaborators
// outside this package (the recording pipeline's post-invocation footprint
// walk) that need to assign RW ordinals themselves rather than through
// RWKeyAt's single-index lookup.
func (fp *Footprint) Order() []string {
	out := make([]string, len(fp.order))
	copy(out, fp.order)
	return out
}

// Keys returns the declared keys in deterministic, canonical-encoding-sorted
// order (spec.md §5 ordering guarantee).
func (fp *Footprint) Keys() []string {
	out := make([]string, len(fp.order))
	copy(out, fp.order)
	sort.Strings(out)
	return out
}

// RWKeyAt returns the canonical key string at ordinal position i within the
// read-write footprint, in original declaration order — the indexing scheme
// restored_rw_entry_indices uses (spec.md §4.6 step 2; mirrors
// build_restored_key_set indexing into resources.footprint.read_write).
// Computed on the fly by filtering `order` for ReadWrite access, rather than
// cached, so that a recording footprint's RW ordinals stay correct across
// Touch upgrades (original_source's recording pipeline assigns RW ordinals
// by walking the footprint once, after invocation, in declaration order).
func (fp *Footprint) RWKeyAt(i int) (string, bool) {
	if i < 0 {
		return "", false
	}
	n := 0
	for _, s := range fp.order {
		if fp.access[s] == AccessReadWrite {
			if n == i {
				return s, true
			}
			n++
		}
	}
	return "", false
}

// ReadWriteKeys returns the subset of declared keys with ReadWrite access,
// sorted by canonical encoding. Used by the restore/extend-TTL helpers and
// the restored-RW-indices validation.
func (fp *Footprint) ReadWriteKeys() []string {
	var out []string
	for _, s := range fp.order {
		if fp.access[s] == AccessReadWrite {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
