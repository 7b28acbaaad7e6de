package rentsize

// ZeroEstimator is a ModuleCostEstimator that reports no additional cost —
// the right default wherever a real VM collaborator hasn't been wired in
// (tests, the simulation helpers of spec.md §4.10, which never actually
// parse wasm).
type ZeroEstimator struct{}

// ModuleMemoryCost always returns 0.
func (ZeroEstimator) ModuleMemoryCost(code []byte) (uint32, error) {
	return 0, nil
}
