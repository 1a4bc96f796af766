package timex

import (
	"testing"
	"time"
)

func TestSystemClockDelay(t *testing.T) {
	c := System()
	start := c.Micros()
	c.DelayMicros(500)
	if got := c.Micros() - start; got < 500 {
		t.Fatalf("delay returned after %dus", got)
	}
	start = c.Micros()
	c.DelayMicros(3000)
	if got := c.Micros() - start; got < 3000 {
		t.Fatalf("sleep returned after %dus", got)
	}
}

func TestSpinLetsOthersRun(t *testing.T) {
	done := make(chan struct{})
	go func() { close(done) }()
	start := time.Now()
	Spin(20 * time.Millisecond)
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("spin returned early")
	}
	select {
	case <-done:
	default:
		t.Fatal("goroutine did not get to run during spin")
	}
}
