//go:build !windows

package proc

import (
	"strings"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Snapshot is a point-in-time view of a running service process, computed on
// demand from the OS process table and never persisted.
type Snapshot struct {
	Name          string  `json:"name" toml:"name"`
	PID           int     `json:"pid" toml:"pid"`
	MemoryRSS     uint64  `json:"memory_rss" toml:"memory_rss"`
	CPUPercent    float64 `json:"cpu_percent" toml:"cpu_percent"`
	Status        string  `json:"status" toml:"status"`
	UptimeSeconds int64   `json:"uptime_seconds" toml:"uptime_seconds"`
}

// Inspect reads a Snapshot for pid. Fields that cannot be sampled are left
// zero; only a failed PID lookup is an error.
func Inspect(name string, pid int) (Snapshot, error) {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Name: name, PID: pid}
	if cpu, err := p.CPUPercent(); err == nil {
		snap.CPUPercent = cpu
	}
	if mi, err := p.MemoryInfo(); err == nil && mi != nil {
		snap.MemoryRSS = mi.RSS
	}
	if sts, err := p.Status(); err == nil {
		snap.Status = strings.Join(sts, ",")
	}
	if ct, err := p.CreateTime(); err == nil && ct > 0 {
		snap.UptimeSeconds = (time.Now().UnixMilli() - ct) / 1000
	}
	return snap, nil
}
