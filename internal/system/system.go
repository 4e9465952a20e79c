// Package system holds host-facing helpers: resource limits, worker
// sizing and cache budgeting from the machine's actual CPU and memory.
package system

import (
	"log/slog"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// InitResourceLimits raises the open-file limit so parallel slide
// rasterization and ffmpeg pipes do not run out of descriptors.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		slog.Warn("reading file limit failed", "err", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		slog.Warn("raising file limit failed", "err", err)
	} else {
		slog.Debug("open file limit raised", "limit", rLimit.Cur)
	}
}

// RenderWorkers picks the worker count for parallel frame rendering:
// physical cores when gopsutil can count them, logical cores otherwise.
func RenderWorkers() int {
	n, err := cpu.Counts(false)
	if err != nil || n < 1 {
		n, err = cpu.Counts(true)
		if err != nil || n < 1 {
			return 1
		}
	}
	return n
}

// CacheBudget sizes the frame cache from available memory: it returns how
// many frames of frameBytes each fit into at most a quarter of free RAM,
// clamped to [minEntries, maxEntries]. A zero frameBytes yields
// minEntries.
func CacheBudget(frameBytes int, minEntries, maxEntries int) int {
	if frameBytes <= 0 {
		return minEntries
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return minEntries
	}
	n := int(vm.Available / 4 / uint64(frameBytes))
	if n < minEntries {
		return minEntries
	}
	if n > maxEntries {
		return maxEntries
	}
	return n
}
