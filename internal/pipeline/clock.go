package pipeline

import (
	"math"
	"time"
)

// DefaultFPS is the replay rate when neither the options nor the source
// provide a usable one
const DefaultFPS = 30.0

// MinDelay is the shortest inter-frame wait, so a slow frame still yields
const MinDelay = time.Millisecond

// MaxInterval caps the frame period for very low rates
const MaxInterval = time.Minute

// Clock abstracts time for the frame loop
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock
var SystemClock Clock = realClock{}

// Interval returns the frame period for fps. Zero, negative, infinite and
// NaN rates fall back to DefaultFPS. Rates slower than one frame per
// MaxInterval are capped there.
func Interval(fps float64) time.Duration {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = DefaultFPS
	}
	if fps < float64(time.Second)/float64(MaxInterval) {
		return MaxInterval
	}
	return time.Duration(float64(time.Second) / fps)
}

// Delay is the wait after a frame that took elapsed: the rest of the
// interval, at least MinDelay
func Delay(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > MinDelay {
		return d
	}
	return MinDelay
}
