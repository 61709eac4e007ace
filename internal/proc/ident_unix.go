//go:build !windows

package proc

import (
	"bufio"
	"bytes"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	gopsproc "github.com/shirou/gopsutil/v4/process"
	"github.com/tklauser/go-sysconf"
)

// startTimeSlack absorbs rounding between clock-tick arithmetic on Linux and
// the millisecond-based gopsutil fallback.
const startTimeSlack = 1

// Alive reports whether pid refers to a live, non-zombie process and, when
// startedUnix is nonzero, whether it is still the same instance that was
// recorded at spawn time.
func Alive(pid int, startedUnix int64) bool {
	if pid <= 0 {
		return false
	}
	if runtime.GOOS == "linux" && isZombie(pid) {
		return false
	}
	if syscall.Kill(pid, 0) != nil {
		return false
	}
	if startedUnix > 0 {
		st := StartTimeUnix(pid)
		if st != 0 && (st < startedUnix-startTimeSlack || st > startedUnix+startTimeSlack) {
			// the PID has been reused by an unrelated process
			return false
		}
	}
	return true
}

// StartTimeUnix returns the process start time as Unix seconds, or 0 when it
// cannot be determined.
func StartTimeUnix(pid int) int64 {
	if pid <= 0 {
		return 0
	}
	if runtime.GOOS == "linux" {
		return startTimeUnixLinux(pid)
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}

// startTimeUnixLinux computes the start time from /proc without spawning
// external processes: starttime ticks from /proc/[pid]/stat plus the boot
// time from /proc/stat.
func startTimeUnixLinux(pid int) int64 {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0
	}
	line := string(b)
	// the comm field may contain spaces; skip past its closing paren
	end := strings.LastIndex(line, ") ")
	if end == -1 {
		return 0
	}
	fields := strings.Fields(line[end+2:])
	// starttime is field 22 overall, index 19 after state
	if len(fields) < 20 {
		return 0
	}
	ticks, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil || ticks <= 0 {
		return 0
	}
	btime := bootTimeUnix()
	if btime == 0 {
		return 0
	}
	clk, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || clk <= 0 {
		clk = 100
	}
	return btime + ticks/clk
}

func bootTimeUnix() int64 {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()
	s := bufio.NewScanner(f)
	for s.Scan() {
		if v, ok := strings.CutPrefix(s.Text(), "btime "); ok {
			if bt, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return bt
			}
		}
	}
	return 0
}

// isZombie reports whether /proc/<pid>/status shows state Z. A quickly
// exiting child is a zombie until reaped and must not count as alive.
func isZombie(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
