package system

import (
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats is a snapshot of host load for the batch performance report.
type Stats struct {
	CPUs        int     `yaml:"cpus"`
	CPUPercent  float64 `yaml:"cpu_percent"`
	MemTotal    uint64  `yaml:"mem_total"`
	MemUsed     uint64  `yaml:"mem_used"`
	MemPercent  float64 `yaml:"mem_percent"`
	HeapAlloc   uint64  `yaml:"heap_alloc"`
	Goroutines  int     `yaml:"goroutines"`
	CollectedAt string  `yaml:"collected_at"`
}

// HostStats samples CPU usage over interval plus current memory use.
// Fields that cannot be read are left zero.
func HostStats(interval time.Duration) (Stats, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := Stats{
		HeapAlloc:   ms.HeapAlloc,
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now().Format(time.RFC3339),
	}

	var firstErr error
	if n, err := cpu.Counts(true); err == nil {
		s.CPUs = n
	} else {
		firstErr = err
	}
	if pct, err := cpu.Percent(interval, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else if err != nil && firstErr == nil {
		firstErr = err
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemTotal = vm.Total
		s.MemUsed = vm.Used
		s.MemPercent = vm.UsedPercent
	} else if firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return s, fmt.Errorf("host stats: %w", firstErr)
	}
	return s, nil
}

func (s Stats) String() string {
	return fmt.Sprintf("cpu %.1f%% of %d, mem %.1f%% (%s / %s), heap %s, %d goroutines",
		s.CPUPercent, s.CPUs, s.MemPercent, HumanBytes(s.MemUsed), HumanBytes(s.MemTotal),
		HumanBytes(s.HeapAlloc), s.Goroutines)
}

// HumanBytes formats n with binary units.
func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
