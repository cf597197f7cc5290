package service

import "time"

// DeleteScheduler defers the post-close channel deletion so
// participants can read the closing message first. Implementations
// are fire-and-forget; a missed run is repaired by startup
// reconciliation.
type DeleteScheduler interface {
	Schedule(delay time.Duration, fn func())
}

// TimerScheduler runs fn on a timer goroutine.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(delay time.Duration, fn func()) {
	time.AfterFunc(delay, fn)
}
