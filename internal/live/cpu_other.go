//go:build !linux

package live

// cpuSampler is a no-op on platforms without /proc/stat.
type cpuSampler struct{}

func newCPUSampler() cpuSampler { return cpuSampler{} }

func (c *cpuSampler) percent() float64 { return 0 }
