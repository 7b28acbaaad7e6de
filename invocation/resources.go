// Package invocation implements the enforcing-mode invocation pipeline of
// spec.md §4.6: the public invoke_host_function surface that decodes every
// pipeline input, builds an isolated host session, runs the call, and
// derives the change set and fees.
package invocation

import (
	"math"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/herror"
)

// Resources is the decoded form of spec.md §4.6's "encoded resources
// (footprint + instruction/byte caps)". The real wire shape
// (xdr.SorobanResources) carries its footprint under a confirmed
// `Resources.Footprint` field (grepped across the teacher pack), but this
// core could not confirm the exact generated field names for its
// instruction/disk-read-byte/write-byte cap fields anywhere in the
// retrieval pack, so callers decode the full resources envelope themselves
// and hand this core the fields it actually needs — the footprint's key
// lists plus the caps, carried verbatim for bookkeeping.
type Resources struct {
	ReadOnly          []xdr.LedgerKey
	ReadWrite         []xdr.LedgerKey
	InstructionLimit  uint32
	DiskReadByteLimit uint32
	WriteByteLimit    uint32
}

// MinLiveUntilLedgerChecked implements the original host's
// `min_live_until_ledger_checked(Persistent)`: current_ledger_seq +
// min_persistent_entry_ttl, failing if the sum overflows a u32 rather than
// silently saturating — an unrepresentable minimum TTL is an internal
// inconsistency, not a value to clamp. Exported because both the enforcing
// pipeline (spec.md §4.6 step 1) and the recording pipeline (§4.7) need the
// same computation.
func MinLiveUntilLedgerChecked(currentLedgerSeq, minPersistentEntryTTL uint32) (uint32, error) {
	sum := uint64(currentLedgerSeq) + uint64(minPersistentEntryTTL)
	if sum > math.MaxUint32 {
		return 0, herror.New(herror.KindContextInternal, "min_live_until_ledger is not representable as a u32")
	}
	return uint32(sum), nil
}
