package server

import (
	"log"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

// Monitor keeps Service stats.
type Monitor struct {
	sync.Mutex
	reqServed  int
	reqFailed  int
	mutations  int
	deltasSent int
	reqDur     *movingaverage.MovingAverage
	stopCh     chan struct{}
}

// RequestServed updates the HTTP request handling metrics.
func (m *Monitor) RequestServed(status int, dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.reqDur.Add(float64(dur/time.Microsecond) / 1000.0)
	m.reqServed++
	if status >= 400 {
		m.reqFailed++
	}
}

// DeltaBroadcasted updates the store mutations metrics.
func (m *Monitor) DeltaBroadcasted(recipients int) {
	m.Lock()
	defer m.Unlock()

	m.mutations++
	m.deltasSent += recipients
}

// Start starts the Monitor worker.
func (m *Monitor) Start(period time.Duration) {
	m.Lock()
	defer m.Unlock()

	if m.stopCh != nil {
		return
	}

	m.stopCh = make(chan struct{})
	go m.worker(period, m.stopCh)
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
func (m *Monitor) worker(period time.Duration, stopCh chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			// Stop the monitor
			return
		case <-ticker.C:
			// Print the report
			m.Lock()

			reqPerSec := float64(m.reqServed) / (float64(period) / float64(time.Second))
			log.Printf("Monitor:")
			log.Printf("  - Requests / s (failed): %.2f (%d)", reqPerSec, m.reqFailed)
			log.Printf("  - Request dur [ms]:      %.2f", m.reqDur.Avg())
			log.Printf("  - Mutations:             %d", m.mutations)
			log.Printf("  - Deltas sent:           %d", m.deltasSent)
			m.reqServed, m.reqFailed = 0, 0
			m.mutations, m.deltasSent = 0, 0

			m.Unlock()
		}
	}
}

// NewMonitor creates a new Monitor object.
func NewMonitor() *Monitor {
	return &Monitor{
		reqDur: movingaverage.New(5),
	}
}
