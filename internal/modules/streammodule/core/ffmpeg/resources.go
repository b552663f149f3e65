// This file sizes FFmpeg's thread and probe settings from host resources.

package ffmpeg

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// lowMemoryThreshold is the available memory below which probing is kept small
const lowMemoryThreshold = 2 << 30

// ResourceConfig contains FFmpeg resource settings
type ResourceConfig struct {
	ProbeSize       string
	AnalyzeDuration string
	ThreadCount     string
	MuxingQueueSize string
}

// HostStats is the subset of host information resource sizing needs
type HostStats struct {
	CPUCount        int
	AvailableMemory uint64
}

// StatsFunc reports host statistics
type StatsFunc func(ctx context.Context) HostStats

// ResourceManager optimizes FFmpeg settings based on system resources
type ResourceManager struct {
	logger hclog.Logger
	stats  StatsFunc
}

// NewResourceManager creates a resource manager backed by gopsutil
func NewResourceManager(logger hclog.Logger) *ResourceManager {
	return &ResourceManager{logger: logger, stats: hostStats}
}

// NewResourceManagerWithStats creates a resource manager with a custom stats source
func NewResourceManagerWithStats(logger hclog.Logger, stats StatsFunc) *ResourceManager {
	return &ResourceManager{logger: logger, stats: stats}
}

// GetOptimalResources returns resource settings for encoding streamCount representations
func (rm *ResourceManager) GetOptimalResources(streamCount int) ResourceConfig {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats := rm.stats(ctx)
	cpuCount := stats.CPUCount
	if cpuCount < 1 {
		cpuCount = 1
	}

	// Two threads per representation, capped at half the host
	threads := streamCount * 2
	if limit := cpuCount / 2; threads > limit {
		threads = limit
	}

	probeSize := "32M"
	analyzeDuration := "10M"
	if stats.AvailableMemory > 0 && stats.AvailableMemory < lowMemoryThreshold {
		probeSize = "5M"
		analyzeDuration = "5M"
	}

	if rm.logger != nil {
		rm.logger.Debug("sized ffmpeg resources",
			"cpus", cpuCount,
			"available_memory", stats.AvailableMemory,
			"streams", streamCount,
			"threads", threads,
		)
	}

	return ResourceConfig{
		ProbeSize:       probeSize,
		AnalyzeDuration: analyzeDuration,
		ThreadCount:     intToString(threads),
		MuxingQueueSize: "1024",
	}
}

// hostStats reads CPU and memory figures via gopsutil, falling back to the Go runtime
func hostStats(ctx context.Context) HostStats {
	stats := HostStats{CPUCount: runtime.NumCPU()}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		stats.CPUCount = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.AvailableMemory = vm.Available
	}

	return stats
}

func intToString(i int) string {
	if i < 1 {
		return "1"
	}
	return strconv.Itoa(i)
}
