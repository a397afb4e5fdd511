package lconsensus

import "time"

// Clock supplies the current time for block and vote timestamps.
// Monotonicity is not required, but makes audit ordering easier.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// UnixSeconds converts t to the whole-second form used on blocks.
func UnixSeconds(t time.Time) uint64 {
	return uint64(t.Unix())
}

// UnixMillis converts t to the whole-millisecond form used on signatures.
func UnixMillis(t time.Time) uint64 {
	return uint64(t.UnixMilli())
}
