package timex

import (
	"runtime"
	"time"
)

// Clock is a microsecond time source with a blocking delay. The sensor
// decoder measures every wait against it.
type Clock interface {
	// Micros returns a monotonic microsecond count.
	Micros() int64
	// DelayMicros blocks for at least us microseconds.
	DelayMicros(us int64)
}

type systemClock struct{ t0 time.Time }

// System returns a Clock backed by the runtime's monotonic time.
func System() Clock { return systemClock{t0: time.Now()} }

func (c systemClock) Micros() int64 { return time.Since(c.t0).Microseconds() }

// DelayMicros busy-waits for short delays so the caller is not descheduled in
// the middle of a bit slot; longer delays sleep.
func (c systemClock) DelayMicros(us int64) {
	if us <= 0 {
		return
	}
	if us >= 2000 {
		time.Sleep(time.Duration(us) * time.Microsecond)
		return
	}
	end := c.Micros() + us
	for c.Micros() < end {
	}
}

// Spin waits for d without parking on a timer. It yields to other runnable
// goroutines between checks, so they can still observe a stop signal, but the
// caller itself never suspends on a timer or channel.
func Spin(d time.Duration) {
	end := time.Now().Add(d)
	for time.Now().Before(end) {
		runtime.Gosched()
	}
}
