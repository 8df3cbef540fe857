// Package jobs provides background worker infrastructure shared across
// the executor's polling loops.
package jobs

// TruncateError truncates an error message to its first 500 bytes, the bound
// applied to any persisted last_error field (e.g. a run's last_error,
// spec §7).
func TruncateError(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
