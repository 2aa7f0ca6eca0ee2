package tracking

import "time"

// Timer is a stoppable pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler creates debounce timers. The real implementation wraps
// time.AfterFunc; tests substitute a manual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
