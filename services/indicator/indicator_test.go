package indicator

import (
	"testing"
	"time"

	"telenode/bus"
	"telenode/services/hal/halsim"
	"telenode/types"
	"telenode/x/syncx"
)

func run(t *testing.T, s *Service) chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("indicator did not stop")
	}
}

func TestBlinksUntilStopped(t *testing.T) {
	led := halsim.NewFakePin(25)
	stop := &syncx.Flag{}
	s := New(led, stop, Config{
		Seeking:      Pattern{On: time.Millisecond, Off: time.Millisecond},
		PollInterval: time.Millisecond,
	})
	done := run(t, s)

	time.Sleep(30 * time.Millisecond)
	stop.Set()
	waitDone(t, done)

	if !led.IsOutput() {
		t.Fatal("led not configured as output")
	}
	if led.Rises() < 3 {
		t.Fatalf("expected several blinks, got %d", led.Rises())
	}
	if led.Get() {
		t.Fatal("led left on after stop")
	}
}

func TestStopBeforeFirstBlink(t *testing.T) {
	led := halsim.NewFakePin(25)
	stop := &syncx.Flag{}
	stop.Set()
	waitDone(t, run(t, New(led, stop, Config{})))
	if led.Rises() != 0 {
		t.Fatalf("blinked %d times after stop", led.Rises())
	}
}

func TestStopNoticedDuringLongOffPhase(t *testing.T) {
	led := halsim.NewFakePin(25)
	stop := &syncx.Flag{}
	s := New(led, stop, Config{
		Seeking:      Pattern{On: time.Millisecond, Off: time.Hour},
		PollInterval: 2 * time.Millisecond,
	})
	done := run(t, s)
	time.Sleep(10 * time.Millisecond)
	stop.Set()
	waitDone(t, done)
}

func TestSlowsDownOnceConnected(t *testing.T) {
	b := bus.NewBus(4)
	pub := b.NewConnection("wifi")
	led := halsim.NewFakePin(25)
	stop := &syncx.Flag{}
	s := New(led, stop, Config{
		Seeking:      Pattern{On: time.Millisecond, Off: time.Millisecond},
		Linked:       Pattern{On: time.Millisecond, Off: time.Hour},
		PollInterval: time.Millisecond,
		Conn:         b.NewConnection("indicator"),
	})
	pub.Publish(pub.NewMessage(bus.T(types.TopicNet, types.TopicState), types.ConnConnected, true))
	done := run(t, s)

	time.Sleep(20 * time.Millisecond)
	settled := led.Rises()
	time.Sleep(20 * time.Millisecond)
	stop.Set()
	waitDone(t, done)

	if settled > 4 {
		t.Fatalf("kept fast-blinking while connected: %d rises", settled)
	}
	if led.Rises() != settled {
		t.Fatalf("blinked during the linked off phase: %d -> %d", settled, led.Rises())
	}
}
