// Package resourceusage samples host CPU and memory consumption as the
// accumulator source for a session's resource-usage metrics, via
// github.com/shirou/gopsutil/v3 (a teacher go.mod dependency never
// exercised by the teacher itself). In the absence of container-level
// cgroup accounting per session, host-wide sampling taken immediately
// before and after a dispatch is the idiomatic stand-in for "per-session
// resource usage."
package resourceusage

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a single point-in-time host resource reading.
type Snapshot struct {
	CPUPercent float64
	MemoryMB   int
	SampledAt  time.Time
}

// Sampler reads host resource usage. Satisfied by Gopsutil in production
// and by a fake in tests that never spawn real system calls.
type Sampler interface {
	Sample() (Snapshot, error)
}

// Gopsutil is the production Sampler, backed by shirou/gopsutil/v3.
type Gopsutil struct{}

// Sample takes an instantaneous (non-blocking) CPU percent reading
// averaged since the last call, and the host's currently used memory.
func (Gopsutil) Sample() (Snapshot, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return Snapshot{}, err
	}
	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		CPUPercent: cpuPercent,
		MemoryMB:   int(vm.Used / (1024 * 1024)),
		SampledAt:  time.Now().UTC(),
	}, nil
}

// Accumulate folds a before/after pair of Snapshots into cumulative
// CPU-seconds and a peak-memory reading for a dispatch of the given
// duration, converting CPU percent (of one core) into seconds consumed
// over that wall-clock span.
func Accumulate(before, after Snapshot, elapsed time.Duration) (cpuSeconds float64, memoryMB int) {
	avgPercent := (before.CPUPercent + after.CPUPercent) / 2
	cpuSeconds = (avgPercent / 100) * elapsed.Seconds()
	memoryMB = after.MemoryMB
	if before.MemoryMB > memoryMB {
		memoryMB = before.MemoryMB
	}
	return cpuSeconds, memoryMB
}
