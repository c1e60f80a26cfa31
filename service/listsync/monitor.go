package listsync

import (
	"log"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

// Monitor keeps Unit stats.
type Monitor struct {
	sync.Mutex
	period        time.Duration
	loadDur       *movingaverage.MovingAverage
	loadsDone     int
	loadsFailed   int
	deltasApplied int
	deltasIgnored int
	periodApplied int
	stopCh        chan struct{}
}

// Stats is a Monitor counters copy.
type Stats struct {
	LoadsDone     int
	LoadsFailed   int
	DeltasApplied int
	DeltasIgnored int
	// Moving average of snapshot fetch duration [ms]
	AvgLoadMs float64
}

// Loaded updates the snapshot fetch metrics.
func (m *Monitor) Loaded(dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.loadsDone++
	m.loadDur.Add(float64(dur/time.Microsecond) / 1000.0)
}

// LoadFailed increments the failed fetches metric.
func (m *Monitor) LoadFailed() {
	m.Lock()
	defer m.Unlock()

	m.loadsFailed++
}

// DeltaApplied increments the effective deltas metric.
func (m *Monitor) DeltaApplied() {
	m.Lock()
	defer m.Unlock()

	m.deltasApplied++
	m.periodApplied++
}

// DeltaIgnored increments the no-op deltas metric (duplicates, missing targets, no snapshot).
func (m *Monitor) DeltaIgnored() {
	m.Lock()
	defer m.Unlock()

	m.deltasIgnored++
}

// Stats returns the current counters.
func (m *Monitor) Stats() Stats {
	m.Lock()
	defer m.Unlock()

	return Stats{
		LoadsDone:     m.loadsDone,
		LoadsFailed:   m.loadsFailed,
		DeltasApplied: m.deltasApplied,
		DeltasIgnored: m.deltasIgnored,
		AvgLoadMs:     m.loadDur.Avg(),
	}
}

// Start starts the Monitor worker.
func (m *Monitor) Start() {
	m.Lock()
	defer m.Unlock()

	if m.stopCh != nil {
		return
	}

	m.stopCh = make(chan struct{})
	go m.worker(m.stopCh)
}

// Stop stops the Monitor worker.
func (m *Monitor) Stop() {
	m.Lock()
	defer m.Unlock()

	if m.stopCh == nil {
		return
	}

	close(m.stopCh)
	m.stopCh = nil
}

// worker does the actual job.
func (m *Monitor) worker(stopCh chan struct{}) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			// Stop the monitor
			return
		case <-ticker.C:
			// Print the report
			m.Lock()

			deltasPerSec := float64(m.periodApplied) / (float64(m.period) / float64(time.Second))
			log.Printf("Monitor:")
			log.Printf("  - Deltas applied / s:  %.2f", deltasPerSec)
			log.Printf("  - Deltas ignored:      %d", m.deltasIgnored)
			log.Printf("  - Loads (failed):      %d (%d)", m.loadsDone, m.loadsFailed)
			log.Printf("  - Load dur [ms]:       %.2f", m.loadDur.Avg())
			m.periodApplied = 0

			m.Unlock()
		}
	}
}

// NewMonitor creates a new Monitor object reporting every period.
func NewMonitor(period time.Duration) *Monitor {
	if period <= 0 {
		period = 5 * time.Second
	}

	return &Monitor{
		period:  period,
		loadDur: movingaverage.New(5),
	}
}
