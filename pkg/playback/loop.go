// Package playback drives continuous redraws while video media is playing.
package playback

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/menta2k/croppy/internal/logging"
)

// DefaultInterval is one frame at 60Hz.
const DefaultInterval = time.Second / 60

// Loop calls the current frame function on every tick until stopped.
//
// The frame function lives in an atomic cell and is loaded on each tick, so
// replacing it takes effect on the next frame and a running loop never draws
// through a stale function.
type Loop struct {
	frame    atomic.Pointer[func()]
	interval atomic.Int64

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

// New creates a stopped loop ticking every interval. Non-positive intervals
// select DefaultInterval.
func New(interval time.Duration) *Loop {
	l := &Loop{}
	l.SetInterval(interval)
	return l
}

// SetFrame replaces the function called each tick. nil clears it.
func (l *Loop) SetFrame(fn func()) {
	if fn == nil {
		l.frame.Store(nil)
		return
	}
	l.frame.Store(&fn)
}

// SetInterval changes the tick period. A running loop picks it up on restart.
func (l *Loop) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	l.interval.Store(int64(d))
}

// Interval returns the tick period.
func (l *Loop) Interval() time.Duration {
	return time.Duration(l.interval.Load())
}

// Running reports whether the loop goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopCh != nil
}

// Start launches the loop. Starting a running loop does nothing.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopCh != nil {
		return
	}
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stopCh, l.done, l.Interval())
	logging.Logger().Debug("playback loop started", "interval", l.Interval())
}

// Stop halts the loop and waits for the in-flight frame, if any, to finish.
// After Stop returns no further frame calls happen.
func (l *Loop) Stop() {
	l.mu.Lock()
	stopCh, done := l.stopCh, l.done
	l.stopCh, l.done = nil, nil
	l.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
	logging.Logger().Debug("playback loop stopped")
}

func (l *Loop) run(stopCh <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// A stop that raced the tick wins.
			select {
			case <-stopCh:
				return
			default:
			}
			if fn := l.frame.Load(); fn != nil {
				(*fn)()
			}
		}
	}
}
