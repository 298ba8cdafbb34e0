package discovery

import (
	"context"
	"time"
)

type timerPauser struct{}

// NewTimerPauser returns a Pauser backed by a timer that gives up early when
// the context is done.
func NewTimerPauser() Pauser {
	return timerPauser{}
}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type systemClock struct{}

// SystemClock returns a Clock reporting UTC wall time.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
