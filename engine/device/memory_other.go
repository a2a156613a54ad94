//go:build !linux

package device

// systemMemory is unavailable off Linux; the probe falls back to DefaultMemoryGB.
func systemMemory() (uint64, bool) {
	return 0, false
}
