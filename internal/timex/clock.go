package timex

import (
	"fmt"
	"sync"
	"time"
)

// MonotonicClock returns UTC instants truncated to microseconds. Every call
// returns an instant strictly after the previous one, even when the wall clock
// stalls or steps backwards.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewMonotonicClock returns a clock backed by time.Now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

// Now returns the next instant.
func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// CompactStamp renders t as YYYYMMDDhhmmss followed by six microsecond digits,
// the form used as the stored filename prefix.
func CompactStamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s%06d", t.Format("20060102150405"), t.Nanosecond()/1000)
}
