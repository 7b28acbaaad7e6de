package xdrcodec

import (
	"crypto/sha256"

	"github.com/withobsrvr/soroban-invocation-core/budget"
)

// ContentHash is the one cryptographic primitive the core owns directly
// (spec.md §1 non-goals): a content-addressing hash used to derive a TTL
// record's key_hash from a key's canonical encoding when no TTL entry was
// supplied for it.
func ContentHash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ContentHashMetered charges the budget for the hash before computing it.
func ContentHashMetered(b *budget.Budget, data []byte) ([32]byte, error) {
	if err := b.Charge(budget.CostComputeSha256Hash, uint64(len(data))); err != nil {
		return [32]byte{}, err
	}
	return ContentHash(data), nil
}
