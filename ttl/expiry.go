// Package ttl implements the TTL-record bookkeeping and simulation helpers
// of spec.md §3/§4.10: the restored-key set (§4.6 step 2), a uniform
// expiry boundary (§9 Open Question a), and the extend-TTL/restore
// simulator operations.
package ttl

// IsExpired reports whether liveUntil has lapsed as of currentLedger.
// spec.md §9(a) settles the `live_until < current` boundary to be treated
// uniformly everywhere it is checked — the auto-restore path and the
// temporary-drop path differ only in which branch fires, never in the
// comparison itself.
func IsExpired(liveUntil, currentLedger uint32) bool {
	return liveUntil < currentLedger
}
