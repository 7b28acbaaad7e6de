// Package xdrcodec is the serialization oracle of spec.md §4.2 / §6: it
// decodes and encodes the opaque byte strings the pipeline consumes
// (ledger keys, ledger entries, resources, host functions, auth entries,
// events) with a configurable size/depth limit, in both an unmetered form
// (test fixtures, recording-mode internal round-trips) and a metered form
// that charges the budget proportionally to byte length.
//
// The underlying wire format is github.com/stellar/go/xdr — the same
// package every Stellar ledger-processing service in this codebase's
// lineage already depends on. What this package adds on top is the
// size/depth ceiling and the budget charge; it never reinterprets the XDR
// itself.
package xdrcodec

import (
	"encoding"
	"fmt"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/budget"
	"github.com/withobsrvr/soroban-invocation-core/herror"
)

// Limits bounds a single decode/encode call. MaxSize is enforced here,
// before a single byte is handed to the decoder. MaxDepth is carried for
// callers that want to reason about it, but this package does not enforce
// it itself: github.com/stellar/go/xdr's generated Unmarshal already walks
// nested unions through its own internal nesting guard, and duplicating
// that bound here would mean tracking a second, independent notion of
// "depth" against a decoder whose recursion structure this package does not
// control.
type Limits struct {
	MaxSize  int
	MaxDepth int
}

// DefaultLimits is the fixed profile used for unmetered decode/encode: test
// fixtures and the internal round-trips the recording-mode pipeline
// performs against its own freshly-produced bytes.
var DefaultLimits = Limits{MaxSize: 128 * 1024 * 1024, MaxDepth: 100}

// unmarshaler is satisfied by *T for any XDR-generated type T.
type unmarshaler[T any] interface {
	*T
	encoding.BinaryUnmarshaler
}

// Decode decodes data into a fresh T using the unmetered profile, rejecting
// inputs over the configured size. It never charges a budget; callers on the
// consensus-critical path must use DecodeMetered instead.
func Decode[T any, PT unmarshaler[T]](data []byte, limits Limits) (T, error) {
	var v T
	if len(data) > limits.MaxSize {
		return v, herror.New(herror.KindValueInvalidInput, "input of %d bytes exceeds limit of %d", len(data), limits.MaxSize)
	}
	p := PT(&v)
	if err := p.UnmarshalBinary(data); err != nil {
		return v, herror.New(herror.KindValueInvalidInput, "xdr decode failed: %v", err)
	}
	return v, nil
}

// DecodeMetered behaves like Decode but charges the budget for the decode
// work before attempting it, proportional to the input's byte length.
func DecodeMetered[T any, PT unmarshaler[T]](b *budget.Budget, data []byte, limits Limits) (T, error) {
	var zero T
	if err := b.Charge(budget.CostValDeser, uint64(len(data))); err != nil {
		return zero, err
	}
	return Decode[T, PT](data, limits)
}

// marshaler is satisfied by any XDR-generated value type (not a pointer).
type marshaler interface {
	encoding.BinaryMarshaler
}

// Encode canonically encodes v. Encoding is canonical: equal inputs always
// produce equal bytes, since it defers entirely to the XDR generated
// MarshalBinary implementation, which has no non-deterministic fields (map
// iteration order, timestamps, ...).
func Encode(v marshaler) ([]byte, error) {
	out, err := v.MarshalBinary()
	if err != nil {
		return nil, herror.New(herror.KindValueInvalidInput, "xdr encode failed: %v", err)
	}
	return out, nil
}

// EncodeMetered behaves like Encode but charges the budget proportional to
// the resulting byte length after encoding (the cost is measured on output
// size, matching metered_write_xdr's behavior of charging as bytes are
// produced).
func EncodeMetered(b *budget.Budget, v marshaler) ([]byte, error) {
	out, err := Encode(v)
	if err != nil {
		return nil, err
	}
	if err := b.Charge(budget.CostValSer, uint64(len(out))); err != nil {
		return nil, err
	}
	return out, nil
}

// CanonicalKeyBytes encodes a ledger key the way the rest of the pipeline
// keys its internal maps: the raw canonical XDR encoding of the key, used
// both as a map key (via string conversion) and as the pre-image of the
// content-addressing hash used for TTL records.
func CanonicalKeyBytes(key xdr.LedgerKey) ([]byte, error) {
	return Encode(key)
}

// MustCanonicalKeyBytes is a convenience for call sites that have already
// validated the key decodes/encodes cleanly (e.g. it came from a prior
// successful decode in this same pipeline run) and want to treat a failure
// here as an internal inconsistency rather than a fresh user-input error.
func MustCanonicalKeyBytes(key xdr.LedgerKey) []byte {
	b, err := CanonicalKeyBytes(key)
	if err != nil {
		panic(fmt.Sprintf("xdrcodec: key that decoded cleanly failed to re-encode: %v", err))
	}
	return b
}
