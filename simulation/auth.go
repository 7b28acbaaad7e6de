package simulation

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/host"
)

// emulatedSignatureSize is the fixed-size placeholder signature spec.md
// §4.7 synthesizes for a recorded non-root authorization requirement
// ("emulated signature of fixed size 512 bytes"), which the caller later
// substitutes a real signature for.
const emulatedSignatureSize = 512

// SynthesizedAuthEntry is a recording-mode harvested authorization
// requirement, converted to the shape a subsequent enforcing run's
// encoded_auth_entries wants. Address nil means the requirement was
// recorded for the invocation's own source account (spec.md §4.7:
// "emulated signature... or SourceAccount credentials"), in which case no
// signature placeholder applies at all.
//
// This core cannot confirm xdr.SorobanCredentials'/
// SorobanAddressCredentials' generated field names anywhere in the
// retrieval pack (the same gap documented against host/auth.go and
// invocation/resources.go), so it stops short of constructing the real
// xdr.SorobanAuthorizationEntry itself and hands the caller everything
// needed to do so: which credential kind applies, the address and nonce
// when address-credentialed, and the emulated signature placeholder's
// length. The RootInvocation is carried as the already-decoded XDR value a
// caller needs no further work to use.
type SynthesizedAuthEntry struct {
	Address                  *xdr.ScAddress
	Nonce                    int64
	SignatureExpirationLedger uint32
	EmulatedSignatureLen      int
	RootInvocation            xdr.SorobanAuthorizedInvocation
}

// synthesizeAuthEntries converts harvested recording-mode payloads into
// their synthesized form, assigning each address-credentialed payload a
// nonce in harvest order (spec.md §3: "Nonce is populated once the
// requirement is converted to a synthetic authorization entry").
func synthesizeAuthEntries(payloads []host.RecordedAuthPayload, signatureExpirationLedger uint32) []SynthesizedAuthEntry {
	out := make([]SynthesizedAuthEntry, 0, len(payloads))
	var nextNonce int64
	for _, p := range payloads {
		entry := SynthesizedAuthEntry{
			Address:                   p.Address,
			SignatureExpirationLedger: signatureExpirationLedger,
			RootInvocation:            p.Invocation,
		}
		if p.Address != nil {
			entry.Nonce = nextNonce
			nextNonce++
			entry.EmulatedSignatureLen = emulatedSignatureSize
		}
		out = append(out, entry)
	}
	return out
}
