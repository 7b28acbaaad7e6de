package storage

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/budget"
	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// Mode distinguishes the two freshness-rule branches of spec.md §4.4 step 3.
type Mode int

const (
	ModeEnforcing Mode = iota
	ModeRecording
)

// TTLRecord is spec.md §3's TTL record: `(key_hash, live_until_ledger)`.
type TTLRecord struct {
	KeyHash   []byte
	LiveUntil uint32
}

// TTLMap is the initial TTL map built alongside the storage map, keyed by
// canonical key string.
type TTLMap struct {
	records map[string]TTLRecord
}

func newTTLMap() *TTLMap { return &TTLMap{records: make(map[string]TTLRecord)} }

// Lookup returns the TTL record for a canonical key string, if any.
func (t *TTLMap) Lookup(s string) (TTLRecord, bool) {
	r, ok := t.records[s]
	return r, ok
}

// Map is the storage map of spec.md §3/§4.4: a mapping from ledger key to an
// optional (entry, live_until) slot, owned for the duration of one invocation
// by the host session. A recording-mode map additionally carries the
// SnapshotSource it lazily fills itself from as GetByKey/SetByKey touch new
// keys (see recording.go).
type Map struct {
	fp    *Footprint
	slots map[string]Slot

	recording bool
	snapshot  SnapshotSource
}

// Footprint returns the footprint this map was built against.
func (m *Map) Footprint() *Footprint { return m.fp }

// Get returns the slot for a canonical key string.
func (m *Map) Get(s string) (Slot, bool) {
	slot, ok := m.slots[s]
	return slot, ok
}

// Set installs/replaces the slot for a canonical key string. Used by the
// host session as the VM collaborator reads/writes storage during
// invocation (outside the scope of this package; exposed for that wiring).
func (m *Map) Set(s string, slot Slot) {
	m.slots[s] = slot
}

// Entries exposes the full slot map for iteration (change-set builder).
func (m *Map) Entries() map[string]Slot { return m.slots }

// EncodedEntryTTLPair is one element of the parallel entry/TTL iterators fed
// into BuildStorageMap: an encoded ledger entry and its (optional) encoded
// TTL record.
type EncodedEntryTTLPair struct {
	EncodedEntry []byte
	EncodedTTL   []byte // nil/empty ⇒ "no TTL" slot
}

// BuildStorageMap implements spec.md §4.4. footprint must already have been
// built (§4.3). currentLedger is the ledger sequence the freshness rule
// compares against. mode selects the enforcing/recording divergence of step
// 3.
func BuildStorageMap(b *budget.Budget, fp *Footprint, pairs []EncodedEntryTTLPair, currentLedger uint32, mode Mode) (*Map, *TTLMap, error) {
	m := &Map{fp: fp, slots: make(map[string]Slot, fp.Len())}
	ttlMap := newTTLMap()

	for _, pair := range pairs {
		entry, err := xdrcodec.DecodeMetered[xdr.LedgerEntry, *xdr.LedgerEntry](b, pair.EncodedEntry, xdrcodec.DefaultLimits)
		if err != nil {
			return nil, nil, err
		}
		key, err := KeyOf(entry)
		if err != nil {
			return nil, nil, err
		}
		kind, _, err := classifyEntryData(entry.Data)
		if err != nil {
			return nil, nil, err
		}
		durableKind := kind == EntryKindContractData || kind == EntryKindContractCode

		var (
			hasLiveUntil bool
			liveUntil    uint32
			keyHash      []byte
		)
		if len(pair.EncodedTTL) > 0 {
			ttl, err := xdrcodec.DecodeMetered[xdr.TtlEntry, *xdr.TtlEntry](b, pair.EncodedTTL, xdrcodec.DefaultLimits)
			if err != nil {
				return nil, nil, err
			}
			hasLiveUntil = true
			liveUntil = uint32(ttl.LiveUntilLedgerSeq)
			keyHash, err = ttl.KeyHash.MarshalBinary()
			if err != nil {
				return nil, nil, herror.New(herror.KindStorageInternal, "failed to marshal ttl key hash: %v", err)
			}
		} else if durableKind {
			return nil, nil, herror.New(herror.KindStorageInternal, "durable entry kind %v missing a TTL record", kind)
		}

		s, err := CanonicalString(key)
		if err != nil {
			return nil, nil, err
		}

		if hasLiveUntil && liveUntil < currentLedger {
			switch mode {
			case ModeEnforcing:
				return nil, nil, herror.New(herror.KindStorageInternal, "expired entry %v present under enforcing mode", kind)
			case ModeRecording:
				// Temporary entries are dropped entirely; Persistent entries
				// are kept as candidates for auto-restore.
				isTemporary := false
				if kind == EntryKindContractData && entry.Data.ContractData.Durability == xdr.ContractDataDurabilityTemporary {
					isTemporary = true
				}
				if isTemporary {
					continue
				}
			}
		}

		if !fp.Contains(s) {
			return nil, nil, herror.New(herror.KindStorageInternal, "entry key not present in footprint")
		}

		m.slots[s] = Slot{Present: true, Entry: entry, LiveUntil: liveUntil, HasLiveUntil: hasLiveUntil}
		if hasLiveUntil {
			ttlMap.records[s] = TTLRecord{KeyHash: keyHash, LiveUntil: liveUntil}
		}
	}

	for _, s := range fp.order {
		if _, ok := m.slots[s]; !ok {
			m.slots[s] = Slot{Present: false}
		}
	}

	return m, ttlMap, nil
}
