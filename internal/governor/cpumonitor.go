package governor

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
)

// CPUMonitor implements spec.md §4.2's "wait_for_safe_usage()": callers
// block while system CPU usage is at or above threshold, sampling every
// checkInterval and emitting one notice per throttle cycle. Grounded on
// internal/monitor/system_monitor.go's cpu.Percent(0, false) sampling.
//
// Per spec.md §9 ("CPU monitor optional"), if gopsutil cannot read a load
// metric on the host platform the monitor degrades to a no-op that always
// reports safe, rather than blocking startup.
type CPUMonitor struct {
	threshold     float64
	checkInterval time.Duration
	log           logging.Logger
	degraded      bool
}

// NewCPUMonitor builds a monitor gating work admission at threshold
// percent CPU usage, sampling every checkInterval.
func NewCPUMonitor(threshold float64, checkInterval time.Duration, log logging.Logger) *CPUMonitor {
	if log == nil {
		log = logging.Global()
	}
	if checkInterval <= 0 {
		checkInterval = 500 * time.Millisecond
	}

	degraded := false
	if _, err := cpu.Percent(0, false); err != nil {
		log.Warn("CPU metrics unavailable on this platform, governor CPU gate disabled", logging.Err(err))
		degraded = true
	}

	return &CPUMonitor{
		threshold:     threshold,
		checkInterval: checkInterval,
		log:           log.Module("governor"),
		degraded:      degraded,
	}
}

// WaitForSafeUsage blocks, sampling CPU usage every checkInterval, until
// usage drops below threshold. Returns immediately if done is closed or the
// monitor is degraded (no usable metric on this platform).
func (m *CPUMonitor) WaitForSafeUsage(done <-chan struct{}) {
	if m.degraded || m.threshold <= 0 {
		return
	}

	notified := false
	for {
		select {
		case <-done:
			return
		default:
		}

		percent, err := cpu.Percent(0, false)
		if err != nil || len(percent) == 0 {
			return // sampling failed mid-run; fail open rather than block forever
		}

		if percent[0] < m.threshold {
			return
		}

		if !notified {
			m.log.Info("throttling: CPU usage above threshold",
				logging.Any("usage_percent", percent[0]),
				logging.Any("threshold_percent", m.threshold))
			notified = true
		}

		timer := time.NewTimer(m.checkInterval)
		select {
		case <-timer.C:
		case <-done:
			timer.Stop()
			return
		}
	}
}
