package host

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/xdrcodec"
)

// AuthMode selects between the two authorization modes of spec.md §4.5.
type AuthMode int

const (
	// AuthEnforcing matches pre-supplied authorization entries against
	// required sub-invocations.
	AuthEnforcing AuthMode = iota
	// AuthRecording logs required authorizations instead of enforcing them.
	AuthRecording
)

// RecordedAuthPayload is one harvested authorization requirement under
// recording-mode auth (spec.md §3/§4.5): `{ address?, nonce?, invocation }`.
// Nonce is populated once the requirement is converted to a synthetic
// authorization entry (spec.md §4.7), not at the point it is recorded.
type RecordedAuthPayload struct {
	Address    *xdr.ScAddress
	Nonce      *int64
	Invocation xdr.SorobanAuthorizedInvocation
}

// SetAuthEntries configures enforcing-mode authorization; a second call (or
// a prior call to SwitchToRecordingAuth) fails, since auth mode is a
// one-shot choice.
func (s *Session) SetAuthEntries(entries []xdr.SorobanAuthorizationEntry) error {
	if s.authConfigured {
		return herror.New(herror.KindContextInternal, "authorization already configured")
	}
	s.authMode = AuthEnforcing
	s.authEntries = entries
	s.authConfigured = true
	return nil
}

// SwitchToRecordingAuth configures recording-mode authorization. When
// disableNonRootAuth is set, any non-root (address-credentialed)
// authorization requirement fails outright instead of being recorded
// (spec.md §4.5: "A flag disables non-root authorization when set").
func (s *Session) SwitchToRecordingAuth(disableNonRootAuth bool) error {
	if s.authConfigured {
		return herror.New(herror.KindContextInternal, "authorization already configured")
	}
	s.authMode = AuthRecording
	s.disableNonRootAuth = disableNonRootAuth
	s.authConfigured = true
	return nil
}

// AuthMode reports the session's configured authorization mode.
func (s *Session) AuthMode() AuthMode { return s.authMode }

// RecordedAuthPayloads returns a copy of the payloads harvested so far
// under recording-mode auth.
func (s *Session) RecordedAuthPayloads() []RecordedAuthPayload {
	out := make([]RecordedAuthPayload, len(s.recordedAuth))
	copy(out, s.recordedAuth)
	return out
}

// RequireAuth is the callback the VM collaborator invokes for each
// sub-invocation requiring authorization (spec.md §6: "emits ...
// authorization queries via callbacks into the host session"). In
// enforcing mode it matches the requirement against the pre-supplied
// entries by content-equality of the encoded invocation tree (a structural
// walk over SorobanAuthorizedInvocation's deep recursive shape buys nothing
// a canonical-encoding comparison doesn't already give, since the
// serialization oracle is already canonical); in recording mode it logs the
// requirement instead.
func (s *Session) RequireAuth(address *xdr.ScAddress, invocation xdr.SorobanAuthorizedInvocation) error {
	switch s.authMode {
	case AuthEnforcing:
		if s.matchesSuppliedEntry(invocation) {
			return nil
		}
		return herror.New(herror.KindAuthInvalidAction, "no supplied authorization entry matches the required invocation")
	case AuthRecording:
		if s.disableNonRootAuth && address != nil {
			return herror.New(herror.KindAuthInvalidAction, "non-root authorization is disabled in recording mode")
		}
		s.recordedAuth = append(s.recordedAuth, RecordedAuthPayload{Address: address, Invocation: invocation})
		return nil
	default:
		return herror.New(herror.KindContextInternal, "unknown authorization mode")
	}
}

func (s *Session) matchesSuppliedEntry(invocation xdr.SorobanAuthorizedInvocation) bool {
	encodedRequired, err := xdrcodec.Encode(invocation)
	if err != nil {
		return false
	}
	for _, entry := range s.authEntries {
		encodedSupplied, err := xdrcodec.Encode(entry.RootInvocation)
		if err != nil {
			continue
		}
		if string(encodedSupplied) == string(encodedRequired) {
			return true
		}
	}
	return false
}
