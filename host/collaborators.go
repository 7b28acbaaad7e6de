package host

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/soroban-invocation-core/herror"
)

// VM is the opaque contract-execution collaborator of spec.md §6: "invoke(host_fn)
// → value | error; emits events and authorization queries via callbacks into
// the host session. Opaque to this spec." The embedded VM itself is a
// non-goal (spec.md §1); this interface is the seam a real wasm executor
// plugs into.
type VM interface {
	Invoke(session *Session, hostFn xdr.HostFunction) (xdr.ScVal, error)
}

// ModuleCache amortizes wasm parse cost across invocations (spec.md §6:
// "parse_and_cache(protocol_version, contract_id, bytes, cost_inputs)").
type ModuleCache interface {
	ParseAndCache(protocolVersion uint32, contractID xdr.Hash, code []byte) error
}

// TraceHook observes invocation lifecycle events; an optional collaborator
// (spec.md §4.5's "optional trace hook").
type TraceHook interface {
	OnInvoke(hostFn xdr.HostFunction)
	OnEvent(event xdr.ContractEvent)
}

// UnimplementedVM rejects every invocation. It exists only so a process
// wiring this core up (cmd/invocation-engine) has something concrete to
// hand to server.New before a real wasm executor is plugged into the VM
// seam above — the executor itself stays out of scope per spec.md §1.
type UnimplementedVM struct{}

func (UnimplementedVM) Invoke(session *Session, hostFn xdr.HostFunction) (xdr.ScVal, error) {
	return xdr.ScVal{}, herror.New(herror.KindWasmVmInvalidAction, "no VM collaborator wired in")
}
