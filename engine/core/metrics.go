package core

import (
	"sync"
	"time"
)

const AVG_COUNT uint8 = 30

// ThreadMetrics tracks the commands executed by a CoreThread.
type ThreadMetrics struct {
	mutex sync.Mutex

	Queued   uint64
	Executed uint64
	Failed   uint64

	cmdAVGCounter uint8
	MStimes       [AVG_COUNT]float64
	// Average command time in milliseconds over the last AVG_COUNT commands.
	MSavg float64
}

func (m *ThreadMetrics) queued() {
	m.mutex.Lock()
	m.Queued++
	m.mutex.Unlock()
}

func (m *ThreadMetrics) update(elapsed time.Duration, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.Executed++
	if failed {
		m.Failed++
	}

	m.MStimes[m.cmdAVGCounter] = float64(elapsed.Nanoseconds()) / 1e6
	if m.cmdAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += m.MStimes[i]
		}
		m.MSavg = sum / float64(AVG_COUNT)
	}
	m.cmdAVGCounter++
	m.cmdAVGCounter %= AVG_COUNT
}

// Snapshot returns the counters and the average command time.
func (m *ThreadMetrics) Snapshot() (queued, executed, failed uint64, msAvg float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.Queued, m.Executed, m.Failed, m.MSavg
}
