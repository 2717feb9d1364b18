package helpers

import (
	"github.com/shirou/gopsutil/v3/mem"

	"pulseops/src/logger"
)

// Heap sizing policy applied at boot.
const (
	memoryLimitShare   = 0.75
	memoryLimitFloorMB = 512
)

// -----------------------------------------------------------------------------

// GetRecommendedMemoryLimit returns the soft heap cap in MB: 75% of physical
// memory, never below 512MB unless the machine itself has less.
func GetRecommendedMemoryLimit(log *logger.Logger) int {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		log.Warning("Could not determine system memory, defaulting to %dMB (%v)", memoryLimitFloorMB, err)
		return memoryLimitFloorMB
	}

	totalMB := int(vm.Total / 1024 / 1024)
	limit := int(float64(totalMB) * memoryLimitShare)
	if limit < memoryLimitFloorMB {
		if totalMB < memoryLimitFloorMB {
			return totalMB
		}
		return memoryLimitFloorMB
	}

	return limit
}
