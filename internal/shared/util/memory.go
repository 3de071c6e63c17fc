package util

import "runtime"

// GetHeapAllocMB reports live heap in MB, logged when the daemon exits.
func GetHeapAllocMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc / 1024 / 1024
}
