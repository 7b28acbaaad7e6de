// Package herror implements the error taxonomy from spec.md §7: a small set
// of error kinds, not types, that every layer of the invocation pipeline
// tags its failures with. Only Budget/Exceeded, the two internal kinds and
// Value/InvalidInput ever abort the pipeline outright; everything else is
// carried inside a result record so a failed invocation still produces a
// well-formed, empty-change-set record suitable for consensus.
package herror

import "fmt"

// Kind discriminates the taxonomy entries of spec.md §7.
type Kind string

const (
	KindBudgetExceeded     Kind = "Budget/Exceeded"
	KindStorageInternal    Kind = "Storage/Internal"
	KindStorageExceeded    Kind = "Storage/ExceededLimit"
	KindStorageMissing     Kind = "Storage/MissingValue"
	KindAuthInvalidAction  Kind = "Auth/InvalidAction"
	KindContextInternal    Kind = "Context/InternalError"
	KindValueInvalidInput  Kind = "Value/InvalidInput"
	KindWasmVmInvalidAction Kind = "WasmVm/InvalidAction"
)

// Error is a tagged error: a Kind plus a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds a tagged error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// AbortsPipeline reports whether an error of this kind must bubble up and
// terminate the invocation (no result record produced), as opposed to being
// embedded in a normal InvokeResult. Per spec.md §7's propagation policy,
// budget exhaustion, true internal inconsistencies and serialization-oracle
// rejections of an input (Value/InvalidInput) abort the pipeline; every
// other kind is delivered as a result.
func (e *Error) AbortsPipeline() bool {
	switch e.Kind {
	case KindBudgetExceeded, KindStorageInternal, KindContextInternal, KindValueInvalidInput:
		return true
	default:
		return false
	}
}

// Is allows errors.Is(err, KindX) style matching against a bare Kind value
// wrapped as an error via Sentinel.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel lets callers build a comparison target for errors.Is without a message.
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
