// Package budget implements the metering core: a two-counter (cpu, memory)
// resource meter that every metered operation in the invocation pipeline
// charges against before it is allowed to act.
package budget

import (
	"errors"
	"fmt"
)

// CostType discriminates the kind of work a charge pays for. Charges are pure
// functions of input sizes so that metering is deterministic across replay.
type CostType int

const (
	// CostWasmInsnExec accounts for VM instruction execution; charged by the
	// VM collaborator, not by this package directly.
	CostWasmInsnExec CostType = iota
	// CostMemAlloc accounts for host-side allocations proportional to byte length.
	CostMemAlloc
	// CostValSer accounts for metered XDR encode work.
	CostValSer
	// CostValDeser accounts for metered XDR decode work.
	CostValDeser
	// CostComputeSha256Hash accounts for the content-addressing hash.
	CostComputeSha256Hash
)

func (c CostType) String() string {
	switch c {
	case CostWasmInsnExec:
		return "WasmInsnExec"
	case CostMemAlloc:
		return "MemAlloc"
	case CostValSer:
		return "ValSer"
	case CostValDeser:
		return "ValDeser"
	case CostComputeSha256Hash:
		return "ComputeSha256Hash"
	default:
		return "Unknown"
	}
}

// ExceededError reports which counter exceeded its cap.
type ExceededError struct {
	Counter  string
	Consumed uint64
	Charge   uint64
	Cap      uint64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("budget/exceeded: %s would reach %d after charging %d, cap is %d",
		e.Counter, e.Consumed+e.Charge, e.Charge, e.Cap)
}

// ErrExceeded is the sentinel matched via errors.Is; the details of an
// exhaustion are read with errors.As(err, *ExceededError).
var ErrExceeded = errors.New("budget exceeded")

// linearModel converts units of work into cpu/memory cost via a simple
// per-unit linear model. Real cost models in the host are far richer
// (per-wasm-opcode tables, batch constants); the pipeline only needs a model
// that is a pure function of its inputs and never reads wall-clock state.
type linearModel struct {
	constCPU  uint64
	linearCPU uint64
	constMem  uint64
	linearMem uint64
}

func (m linearModel) chargeFor(units uint64) (cpu, mem uint64) {
	cpu = m.constCPU + m.linearCPU*units
	mem = m.constMem + m.linearMem*units
	return
}

var costModels = map[CostType]linearModel{
	CostWasmInsnExec:      {constCPU: 0, linearCPU: 1, constMem: 0, linearMem: 0},
	CostMemAlloc:          {constCPU: 1, linearCPU: 0, constMem: 16, linearMem: 1},
	CostValSer:            {constCPU: 4, linearCPU: 1, constMem: 4, linearMem: 1},
	CostValDeser:          {constCPU: 4, linearCPU: 2, constMem: 4, linearMem: 1},
	CostComputeSha256Hash: {constCPU: 64, linearCPU: 1, constMem: 0, linearMem: 0},
}

// Budget tracks cpu/memory consumed against a hard cap. All metered
// operations must charge through it before acting; charge failures are
// terminal for the invocation (spec.md §7 Budget/Exceeded).
type Budget struct {
	cpuConsumed uint64
	cpuLimit    uint64
	memConsumed uint64
	memLimit    uint64

	shadow *Budget // non-nil while executing inside WithShadow
}

// New creates a Budget with the given hard caps.
func New(cpuLimit, memLimit uint64) *Budget {
	return &Budget{cpuLimit: cpuLimit, memLimit: memLimit}
}

// Charge deducts the cost of performing `units` of work of the given cost
// type. It fails with an *ExceededError (wrapping ErrExceeded) if either
// counter would cross its cap. The deduction is atomic: on failure neither
// counter is mutated.
func (b *Budget) Charge(cost CostType, units uint64) error {
	model, ok := costModels[cost]
	if !ok {
		return fmt.Errorf("budget: unknown cost type %v", cost)
	}
	cpu, mem := model.chargeFor(units)
	return b.chargeRaw(cpu, mem)
}

func (b *Budget) chargeRaw(cpu, mem uint64) error {
	target := b
	if b.shadow != nil {
		target = b.shadow
	}
	if target.cpuConsumed+cpu < target.cpuConsumed || target.cpuConsumed+cpu > target.cpuLimit {
		return fmt.Errorf("%w: %w", ErrExceeded, &ExceededError{
			Counter: "cpu", Consumed: target.cpuConsumed, Charge: cpu, Cap: target.cpuLimit,
		})
	}
	if target.memConsumed+mem < target.memConsumed || target.memConsumed+mem > target.memLimit {
		return fmt.Errorf("%w: %w", ErrExceeded, &ExceededError{
			Counter: "memory", Consumed: target.memConsumed, Charge: mem, Cap: target.memLimit,
		})
	}
	target.cpuConsumed += cpu
	target.memConsumed += mem
	return nil
}

// WithShadow runs f while redirecting all charges to a non-consensus shadow
// sub-budget that shares this budget's caps but not its counters. Shadow
// failures never surface — they are swallowed so that helper work (e.g.
// synthesizing footprint-only change records in recording mode) can never
// affect the invocation's outcome.
func (b *Budget) WithShadow(f func() error) {
	if b.shadow != nil {
		// Already inside a shadow scope; just run f against the existing one.
		_ = f()
		return
	}
	b.shadow = New(b.cpuLimit, b.memLimit)
	defer func() { b.shadow = nil }()
	_ = f()
}

// CPUConsumed returns the cpu units consumed so far (not including any
// shadow sub-budget).
func (b *Budget) CPUConsumed() uint64 {
	return b.cpuConsumed
}

// MemoryConsumed returns the memory units consumed so far.
func (b *Budget) MemoryConsumed() uint64 {
	return b.memConsumed
}

// Reset clears consumed counters and installs a new cpu cap, keeping the
// existing memory cap. Used between independent invocations that reuse a
// Budget value (e.g. the simulator's re-run-for-resources estimation step).
func (b *Budget) Reset(cpuCap uint64) {
	b.cpuConsumed = 0
	b.memConsumed = 0
	b.cpuLimit = cpuCap
	b.shadow = nil
}
