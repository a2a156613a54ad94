package device

import (
	"golang.org/x/sys/unix"
)

// systemMemory reads total RAM from sysinfo(2).
func systemMemory() (uint64, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	return uint64(info.Totalram) * uint64(info.Unit), true
}
