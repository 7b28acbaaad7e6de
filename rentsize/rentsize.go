// Package rentsize implements the rent-size helper of spec.md §4.8:
// "size_for_rent(entry, xdr_size) returns xdr_size unless entry is
// ContractCode, in which case it returns saturating_add(xdr_size,
// module_memory_cost)." It is split out of the changeset and ttl packages
// (both need it) since neither owns the other.
package rentsize

import (
	"math"

	"github.com/stellar/go/xdr"
)

// ModuleCostEstimator derives the in-memory module cost of a ContractCode
// entry's wasm payload (spec.md §3: "Contract code entries additionally
// yield a derived in-memory module cost used for rent sizing"). Opaque to
// this package — the VM collaborator is the only thing that can parse wasm
// and is out of scope here (spec.md §1 non-goals).
type ModuleCostEstimator interface {
	ModuleMemoryCost(code []byte) (uint32, error)
}

// SizeForRent returns xdrSize unless entry is a ContractCode entry, in which
// case it adds the estimator's module memory cost, saturating at
// math.MaxUint32.
func SizeForRent(entry xdr.LedgerEntry, xdrSize uint32, estimator ModuleCostEstimator) (uint32, error) {
	if entry.Data.Type != xdr.LedgerEntryTypeContractCode {
		return xdrSize, nil
	}
	cost, err := estimator.ModuleMemoryCost(entry.Data.ContractCode.Code)
	if err != nil {
		return 0, err
	}
	return saturatingAddU32(xdrSize, cost), nil
}

func saturatingAddU32(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(sum)
}
