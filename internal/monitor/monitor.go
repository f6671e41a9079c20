// Package monitor accumulates translation attempt observations and host
// resource gauges for the metrics endpoint.
package monitor

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// windowSize bounds the rolling sample of successful elapsed times used
// for the average.
const windowSize = 100

// TranslationMetrics are lifetime counters plus the rolling average.
type TranslationMetrics struct {
	TotalRequests          int     `json:"total_requests"`
	SuccessfulTranslations int     `json:"successful_translations"`
	FailedTranslations     int     `json:"failed_translations"`
	AverageTranslationTime float64 `json:"average_translation_time"`
	SuccessRate            float64 `json:"success_rate"`
}

// SystemMetrics are point-in-time host resource gauges.
type SystemMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_usage"`
	UptimeSeconds float64 `json:"uptime"`
}

// Metrics is the full snapshot served by the metrics endpoint.
type Metrics struct {
	Translation TranslationMetrics `json:"translation_metrics"`
	System      SystemMetrics      `json:"system_metrics"`
}

type Monitor struct {
	mu        sync.Mutex
	total     int
	succeeded int
	failed    int
	times     []float64
	start     time.Time
}

func New() *Monitor {
	return &Monitor{start: time.Now()}
}

// RecordAttempt registers one finished translation job. Elapsed time is
// only sampled for successes; failures move the counters alone.
func (m *Monitor) RecordAttempt(success bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if !success {
		m.failed++
		return
	}
	m.succeeded++
	m.times = append(m.times, elapsed.Seconds())
	if len(m.times) > windowSize {
		m.times = m.times[len(m.times)-windowSize:]
	}
}

// Metrics returns a consistent snapshot of the counters combined with
// best-effort host gauges. Gauge probes that fail report zero.
func (m *Monitor) Metrics() Metrics {
	m.mu.Lock()
	tm := TranslationMetrics{
		TotalRequests:          m.total,
		SuccessfulTranslations: m.succeeded,
		FailedTranslations:     m.failed,
	}
	if len(m.times) > 0 {
		var sum float64
		for _, t := range m.times {
			sum += t
		}
		tm.AverageTranslationTime = sum / float64(len(m.times))
	}
	if m.total > 0 {
		tm.SuccessRate = float64(m.succeeded) / float64(m.total) * 100
	}
	uptime := time.Since(m.start).Seconds()
	m.mu.Unlock()

	return Metrics{
		Translation: tm,
		System:      systemMetrics(uptime),
	}
}

func systemMetrics(uptime float64) SystemMetrics {
	sm := SystemMetrics{UptimeSeconds: uptime}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		sm.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		sm.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		sm.DiskPercent = du.UsedPercent
	}
	return sm
}

// DiskUsagePercent probes root filesystem usage for health checks.
func DiskUsagePercent() (float64, error) {
	du, err := disk.Usage("/")
	if err != nil {
		return 0, err
	}
	return du.UsedPercent, nil
}
