//go:build !linux

package schedpolicy

// applyPlatform has no real scheduling backend outside Linux: every policy
// is a logged no-op, per spec §4.F's "unsupported policies on the host
// produce a no-op with a log line but do not fail the worker."
func applyPlatform(req Request, priority int) error {
	logNoop(req, "scheduling policy control not implemented on this platform")
	return nil
}
