//go:build linux

package live

import (
	"os"
	"strconv"
	"strings"
)

// cpuSampler estimates CPU usage as the busy percentage of all cores
// together, from the system-wide jiffies in /proc/stat between samples.
// This is a coarse whole-system figure, not per-process accounting (that
// would require /proc/self/stat plus clock-tick math); it is good enough
// for the dashboard's "is this box busy" readout named in Expansion C.7.
type cpuSampler struct {
	lastTotal uint64
	lastIdle  uint64
}

func newCPUSampler() cpuSampler {
	total, idle := readProcStat()
	return cpuSampler{lastTotal: total, lastIdle: idle}
}

func (c *cpuSampler) percent() float64 {
	total, idle := readProcStat()
	if total == 0 {
		return 0
	}
	deltaTotal := total - c.lastTotal
	deltaIdle := idle - c.lastIdle
	c.lastTotal, c.lastIdle = total, idle
	if deltaTotal == 0 {
		return 0
	}
	busy := float64(deltaTotal-deltaIdle) / float64(deltaTotal)
	return busy * 100
}

func readProcStat() (total, idle uint64) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0
	}
	lines := strings.SplitN(string(data), "\n", 2)
	if len(lines) == 0 {
		return 0, 0
	}
	fields := strings.Fields(lines[0])
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0
	}
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			continue
		}
		total += v
		if i == 3 { // idle is the 4th value
			idle = v
		}
	}
	return total, idle
}
