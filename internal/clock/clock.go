package clock

import "time"

// Clock abstracts wall-clock time so token expiry and timestamps are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock returns real time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Fixed is a test clock pinned to a settable instant.
type Fixed struct {
	Instant time.Time
}

func (f *Fixed) Now() time.Time { return f.Instant }
