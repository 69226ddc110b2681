package backlight

import "time"

// tapTracker times a double tap. It is valid between the first tap and
// either the toggle or an invalidating second contact.
type tapTracker struct {
	interval  time.Duration
	started   time.Time
	secondTap bool
}

func (t *tapTracker) valid() bool {
	return !t.started.IsZero()
}

func (t *tapTracker) start(now time.Time) {
	t.started = now
	t.secondTap = false
}

// within reports whether now is inside the double tap interval. Clock skew
// counts as outside.
func (t *tapTracker) within(now time.Time) bool {
	elapsed := now.Sub(t.started)
	return elapsed >= 0 && elapsed < t.interval
}

func (t *tapTracker) invalidate() {
	t.started = time.Time{}
	t.secondTap = false
}
