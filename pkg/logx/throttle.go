package logx

import (
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

// Throttle emits a message at most once per interval.
// Used by frame loops, which would otherwise log the same error at frame rate.
type Throttle struct {
	Interval time.Duration

	lock       sync.Mutex
	last       time.Time
	suppressed int
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{Interval: interval}
}

// Errorf logs if the interval has elapsed since the previous message, and returns true if it logged
func (t *Throttle) Errorf(log logs.Log, format string, a ...any) bool {
	t.lock.Lock()
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.Interval {
		t.suppressed++
		t.lock.Unlock()
		return false
	}
	suppressed := t.suppressed
	t.suppressed = 0
	t.last = now
	t.lock.Unlock()

	if suppressed != 0 {
		log.Errorf(format+" (%v similar messages suppressed)", append(a, suppressed)...)
	} else {
		log.Errorf(format, a...)
	}
	return true
}
