package live

import (
	"runtime"
	"time"

	"github.com/regimeflow/regimeflow/internal/clock"
)

// DashboardSnapshot is a read-only summary of one live engine's current
// state, built on demand by Engine.GetDashboardSnapshot per Expansion C.7
// (grounded on LiveTradingEngine::DashboardSnapshot). cmd/regimeflow-live
// does not call it.
type DashboardSnapshot struct {
	Timestamp      clock.Timestamp
	Connected      bool
	TradingEnabled bool
	OpenOrders     int
	Equity         float64
	RealizedPnL    float64
	RecentAlerts   []Alert
}

// SystemHealth is the process-level health readout (Expansion C.7:
// LiveTradingEngine::SystemHealth), sampled from runtime.MemStats plus a
// platform-specific CPU estimate rather than any external monitoring
// system, per §1's scope.
type SystemHealth struct {
	Timestamp      clock.Timestamp
	Goroutines     int
	HeapAllocBytes uint64
	CPUPercent     float64
	Uptime         time.Duration
}

// healthSampler produces SystemHealth readings relative to a process start
// time; cpu.percent() is platform-specific (Linux samples /proc/stat deltas,
// other platforms report 0).
type healthSampler struct {
	started time.Time
	cpu     cpuSampler
}

func newHealthSampler() *healthSampler {
	return &healthSampler{started: time.Now(), cpu: newCPUSampler()}
}

func (h *healthSampler) sample(now clock.Timestamp) SystemHealth {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return SystemHealth{
		Timestamp:      now,
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
		CPUPercent:     h.cpu.percent(),
		Uptime:         time.Since(h.started),
	}
}
