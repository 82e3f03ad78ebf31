package connection

import (
	"sync"
	"time"
)

const (
	DefaultBlockTime = 6000
	MinBlockTime     = 500
)

// blockTimeTracker estimates the block interval of the connected chain in milliseconds from
// the arrival times of new headers.
type blockTimeTracker struct {
	lock           *sync.RWMutex
	estimate       int
	consecutiveHit int
	lastArrival    time.Time
}

func newBlockTimeTracker(blockTime int) *blockTimeTracker {
	return &blockTimeTracker{
		lock:     &sync.RWMutex{},
		estimate: blockTime,
	}
}

// observe records a header arriving at the given time.
func (t *blockTimeTracker) observe(at time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.lastArrival.IsZero() {
		t.lastArrival = at
		return
	}

	interval := int(at.Sub(t.lastArrival) / time.Millisecond)
	t.lastArrival = at

	switch {
	case interval <= t.estimate:
		t.consecutiveHit++
		if t.consecutiveHit >= 3 {
			t.estimate = t.estimate * 6 / 10
		} else {
			t.estimate = t.estimate * 950 / 1000
		}
		if t.estimate < interval {
			t.estimate = interval
		}

	case interval <= t.estimate*3/2:
		t.estimate = t.estimate * 1025 / 1000
		t.consecutiveHit = 0

	default:
		t.estimate = t.estimate * 11 / 10
		t.consecutiveHit = 0
	}

	if t.estimate < MinBlockTime {
		t.estimate = MinBlockTime
	}
}

// reset forgets the last arrival so the gap across a reconnection is not measured.
func (t *blockTimeTracker) reset() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.lastArrival = time.Time{}
	t.consecutiveHit = 0
}

func (t *blockTimeTracker) blockTime() int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.estimate
}
