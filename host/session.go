// Package host implements the host session lifecycle of spec.md §4.5: a
// once-built, once-finished holder of budget, storage, source account,
// ledger info, authorization state, PRNG seed, diagnostic level, and the
// optional module-cache/trace-hook collaborators, wrapping invocation of
// the opaque VM collaborator.
package host

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/budget"
	"github.com/withobsrvr/soroban-invocation-core/herror"
	"github.com/withobsrvr/soroban-invocation-core/storage"
)

// DiagnosticLevel controls whether diagnostic events are recorded.
type DiagnosticLevel int

const (
	DiagnosticNone DiagnosticLevel = iota
	DiagnosticBasic
	DiagnosticDebug
)

// LedgerInfo is the minimal ledger context a session needs (spec.md §4.6
// step 1 calls it "the ledger-info struct", carried un-encoded unlike every
// other pipeline input).
type LedgerInfo struct {
	ProtocolVersion       uint32
	SequenceNumber        uint32
	Timestamp             uint64
	NetworkID             [32]byte
	BaseReserve           uint32
	MinPersistentEntryTTL uint32
	MinTemporaryEntryTTL  uint32
	MaxEntryTTL           uint32
}

// Session holds everything spec.md §4.5 lists: "budget handle, storage,
// source account, ledger info, authorization state, PRNG seed, diagnostic
// level, optional module cache, event log, optional trace hook." Every
// `set_*` is one-shot; `InvokeFunction` runs at most once; `Finish` consumes
// the session.
type Session struct {
	budget  *budget.Budget
	storage *storage.Map
	vm      VM

	sourceAccountSet bool
	sourceAccount    xdr.AccountId

	ledgerInfoSet bool
	ledgerInfo    LedgerInfo

	authMode           AuthMode
	authConfigured     bool
	authEntries        []xdr.SorobanAuthorizationEntry
	disableNonRootAuth bool
	recordedAuth       []RecordedAuthPayload

	prngSeedSet bool
	prngSeed    [32]byte

	diagLevelSet bool
	diagLevel    DiagnosticLevel

	moduleCache ModuleCache
	traceHook   TraceHook

	events           []xdr.ContractEvent
	diagnosticEvents []xdr.DiagnosticEvent

	invoked  bool
	finished bool
}

// New creates a session over an already-built storage map, in enforcing
// auth mode by default (spec.md §4.5: "Enforcing" is the mode absent an
// explicit switch to recording).
func New(b *budget.Budget, storageMap *storage.Map, vm VM) *Session {
	return &Session{budget: b, storage: storageMap, vm: vm, authMode: AuthEnforcing}
}

// Budget exposes the session's budget handle to collaborators (the VM
// charges through it during execution).
func (s *Session) Budget() *budget.Budget { return s.budget }

// Storage exposes the session's storage map to collaborators.
func (s *Session) Storage() *storage.Map { return s.storage }

// SetSourceAccount is a one-shot setter; a second call fails.
func (s *Session) SetSourceAccount(acc xdr.AccountId) error {
	if s.sourceAccountSet {
		return herror.New(herror.KindContextInternal, "source account already set")
	}
	s.sourceAccount = acc
	s.sourceAccountSet = true
	return nil
}

// SourceAccount returns the configured source account.
func (s *Session) SourceAccount() xdr.AccountId { return s.sourceAccount }

// SetLedgerInfo is a one-shot setter; a second call fails.
func (s *Session) SetLedgerInfo(info LedgerInfo) error {
	if s.ledgerInfoSet {
		return herror.New(herror.KindContextInternal, "ledger info already set")
	}
	s.ledgerInfo = info
	s.ledgerInfoSet = true
	return nil
}

// LedgerInfo returns the configured ledger info.
func (s *Session) LedgerInfo() LedgerInfo { return s.ledgerInfo }

// SetPRNGSeed is a one-shot setter; a second call fails. Callers decoding a
// raw byte seed from the pipeline boundary should validate its length with
// ParsePRNGSeed first.
func (s *Session) SetPRNGSeed(seed [32]byte) error {
	if s.prngSeedSet {
		return herror.New(herror.KindContextInternal, "prng seed already set")
	}
	s.prngSeed = seed
	s.prngSeedSet = true
	return nil
}

// PRNGSeed returns the configured seed.
func (s *Session) PRNGSeed() [32]byte { return s.prngSeed }

// ParsePRNGSeed validates a raw byte seed is exactly 32 bytes (spec.md §4.6
// step 6: "PRNG seed (exactly 32 bytes; else fail Context/InternalError)").
func ParsePRNGSeed(b []byte) ([32]byte, error) {
	var seed [32]byte
	if len(b) != 32 {
		return seed, herror.New(herror.KindContextInternal, "prng seed must be exactly 32 bytes, got %d", len(b))
	}
	copy(seed[:], b)
	return seed, nil
}

// SetDiagnosticLevel is a one-shot setter; a second call fails.
func (s *Session) SetDiagnosticLevel(level DiagnosticLevel) error {
	if s.diagLevelSet {
		return herror.New(herror.KindContextInternal, "diagnostic level already set")
	}
	s.diagLevel = level
	s.diagLevelSet = true
	return nil
}

// InstallModuleCache installs the optional module-cache collaborator; a
// second call fails.
func (s *Session) InstallModuleCache(cache ModuleCache) error {
	if s.moduleCache != nil {
		return herror.New(herror.KindContextInternal, "module cache already installed")
	}
	s.moduleCache = cache
	return nil
}

// ModuleCache returns the installed module cache, if any.
func (s *Session) ModuleCache() ModuleCache { return s.moduleCache }

// InstallTraceHook installs the optional trace-hook collaborator; a second
// call fails.
func (s *Session) InstallTraceHook(hook TraceHook) error {
	if s.traceHook != nil {
		return herror.New(herror.KindContextInternal, "trace hook already installed")
	}
	s.traceHook = hook
	return nil
}

// AppendEvent records a contract event, called back by the VM collaborator
// during InvokeFunction.
func (s *Session) AppendEvent(event xdr.ContractEvent) {
	s.events = append(s.events, event)
}

// AppendDiagnosticEvent records a diagnostic event if diagnostics are
// enabled — gated here rather than at the call site so step 10's "always
// populate diagnostic events when diagnostics enabled, independent of
// success" holds regardless of how InvokeFunction concludes.
func (s *Session) AppendDiagnosticEvent(event xdr.DiagnosticEvent) {
	if s.diagLevel != DiagnosticNone {
		s.diagnosticEvents = append(s.diagnosticEvents, event)
	}
}

// InvokeFunction runs the VM collaborator. It never panics: any panic from
// the VM is recovered and reported as a WasmVm/InvalidAction result, per
// spec.md §4.5's "Never panics" contract. A second call fails, as does a
// call before every required one-shot setter has run.
func (s *Session) InvokeFunction(hostFn xdr.HostFunction) (result xdr.ScVal, err error) {
	if s.invoked {
		return xdr.ScVal{}, herror.New(herror.KindContextInternal, "invoke_function already called")
	}
	if !s.sourceAccountSet || !s.ledgerInfoSet || !s.prngSeedSet {
		return xdr.ScVal{}, herror.New(herror.KindContextInternal, "session is missing a required one-shot setter")
	}
	s.invoked = true

	if s.traceHook != nil {
		s.traceHook.OnInvoke(hostFn)
	}
	if s.vm == nil {
		return xdr.ScVal{}, herror.New(herror.KindWasmVmInvalidAction, "no VM collaborator installed")
	}

	defer func() {
		if r := recover(); r != nil {
			result = xdr.ScVal{}
			err = herror.New(herror.KindWasmVmInvalidAction, "vm collaborator panicked: %v", r)
		}
	}()
	return s.vm.Invoke(s, hostFn)
}

// Finish consumes the session, returning its final storage map and
// accumulated events. A second call fails.
func (s *Session) Finish() (*storage.Map, []xdr.ContractEvent, []xdr.DiagnosticEvent, error) {
	if s.finished {
		return nil, nil, nil, herror.New(herror.KindContextInternal, "session already finished")
	}
	s.finished = true
	return s.storage, s.events, s.diagnosticEvents, nil
}
