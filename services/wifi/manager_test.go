package wifi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telenode/bus"
	"telenode/services/hal/halsim"
	"telenode/services/watchdog"
	"telenode/types"
	"telenode/x/syncx"
)

func fastConfig() Config {
	return Config{
		Station:        types.StationConfig{SSID: "lab", Password: "secret"},
		ConnectTimeout: 20 * time.Millisecond,
		StartTimeout:   20 * time.Millisecond,
		ConnectedPause: 5 * time.Millisecond,
		RetryPause:     5 * time.Millisecond,
		ReconnectPause: 5 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}
}

type harness struct {
	m      *Manager
	radio  *halsim.Radio
	marker *syncx.Marker
	stop   *syncx.Flag
	done   chan struct{}
}

func start(t *testing.T, radio *halsim.Radio, cfg Config, setup ...func(*harness)) *harness {
	t.Helper()
	h := &harness{radio: radio, marker: &syncx.Marker{}, stop: &syncx.Flag{}, done: make(chan struct{})}
	h.m = New(radio, h.marker, h.stop, cfg)
	for _, fn := range setup {
		fn(h)
	}
	go func() {
		defer close(h.done)
		h.m.Run(context.Background())
	}()
	t.Cleanup(func() {
		h.stop.Set()
		radio.Release()
		<-h.done
	})
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) stopAndWait(t *testing.T, within time.Duration) {
	t.Helper()
	h.stop.Set()
	select {
	case <-h.done:
	case <-time.After(within):
		t.Fatalf("manager did not stop within %v", within)
	}
}

func TestRetriesThroughConnectTimeouts(t *testing.T) {
	radio := halsim.NewRadio(halsim.HangCtx, halsim.HangCtx, halsim.HangCtx, halsim.Succeed)
	var mu sync.Mutex
	var seen []uint32
	cfg := fastConfig()
	cfg.ConnectedPause = time.Second

	h := start(t, radio, cfg, func(h *harness) {
		radio.OnConnect = func(int) {
			mu.Lock()
			seen = append(seen, h.marker.Load())
			mu.Unlock()
		}
	})

	waitFor(t, "connected", func() bool { return h.m.State() == types.ConnConnected })
	if got := h.m.Attempts(); got != 4 {
		t.Fatalf("attempts = %d, want 4", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 4 {
		t.Fatalf("recorded %d markers", len(seen))
	}
	for i, v := range seen {
		if syncx.StepOf(v) != types.StepConnect {
			t.Fatalf("attempt %d: marker step %v", i, syncx.StepOf(v))
		}
		if i > 0 && v <= seen[i-1] {
			t.Fatalf("attempt %d: marker %d not after %d", i, v, seen[i-1])
		}
	}
	h.stopAndWait(t, 100*time.Millisecond)
	if h.m.State() != types.ConnStopped {
		t.Fatalf("state after stop = %v", h.m.State())
	}
}

func TestConnectTimeoutHoldsAgainstHungDriver(t *testing.T) {
	radio := halsim.NewRadio(halsim.Hang, halsim.Succeed)
	h := start(t, radio, fastConfig())

	waitFor(t, "second attempt", func() bool { return h.m.Attempts() >= 2 })
	waitFor(t, "connected", func() bool {
		s := h.m.State()
		return s == types.ConnConnected || s == types.ConnWaitingForDisconnect
	})
}

func TestStopBeforeFirstIteration(t *testing.T) {
	radio := halsim.NewRadio()
	marker, stop := &syncx.Marker{}, &syncx.Flag{}
	stop.Set()
	m := New(radio, marker, stop, fastConfig())
	m.Run(context.Background())

	if m.State() != types.ConnStopped {
		t.Fatalf("state = %v", m.State())
	}
	if starts, _, connects := radio.Counts(); starts != 0 || connects != 0 {
		t.Fatalf("radio touched after stop: starts=%d connects=%d", starts, connects)
	}
	if syncx.StepOf(marker.Load()) != types.StepStopped {
		t.Fatalf("last step = %v", syncx.StepOf(marker.Load()))
	}
}

func TestStopIsPromptWhileConnected(t *testing.T) {
	radio := halsim.NewRadio(halsim.Succeed)
	h := start(t, radio, fastConfig())

	waitFor(t, "waiting for disconnect", func() bool { return h.m.State() == types.ConnWaitingForDisconnect })
	h.stopAndWait(t, 50*time.Millisecond)
}

func TestStopIsPromptDuringBackoff(t *testing.T) {
	radio := halsim.NewRadio()
	radio.Default = halsim.Fail
	cfg := fastConfig()
	cfg.RetryPause = time.Hour
	h := start(t, radio, cfg)

	waitFor(t, "first failure", func() bool { return h.m.Attempts() == 1 && h.m.State() == types.ConnIdle })
	h.stopAndWait(t, 50*time.Millisecond)
}

func TestStopAbandonsConnectInFlight(t *testing.T) {
	radio := halsim.NewRadio(halsim.Hang)
	cfg := fastConfig()
	cfg.ConnectTimeout = time.Hour
	cfg.FatalStartErrors = true
	cfg.Fault = func(reason string) { t.Errorf("fault on stop: %s", reason) }
	h := start(t, radio, cfg)

	waitFor(t, "connect in flight", func() bool { return h.m.Attempts() == 1 })
	h.stopAndWait(t, 50*time.Millisecond)
	if h.m.State() != types.ConnStopped {
		t.Fatalf("state after stop = %v", h.m.State())
	}
}

func TestLongBackoffKeepsAdvancingMarker(t *testing.T) {
	radio := halsim.NewRadio()
	radio.Default = halsim.Fail
	cfg := fastConfig()
	cfg.RetryPause = time.Hour
	h := start(t, radio, cfg)

	waitFor(t, "first failure", func() bool { return h.m.Attempts() == 1 && h.m.State() == types.ConnIdle })
	before := h.marker.Load()
	time.Sleep(30 * time.Millisecond)
	after := h.marker.Load()
	if after <= before {
		t.Fatalf("marker stalled during backoff: %d -> %d", before, after)
	}
	if syncx.StepOf(after) != types.StepPause {
		t.Fatalf("step = %v", syncx.StepOf(after))
	}
}

func TestBackoffLongerThanStallLimitDoesNotFault(t *testing.T) {
	radio := halsim.NewRadio()
	radio.Default = halsim.Fail
	cfg := fastConfig()
	cfg.RetryPause = 200 * time.Millisecond
	h := start(t, radio, cfg)

	faults := make(chan string, 1)
	wd := watchdog.New(h.marker, h.stop, watchdog.Config{
		Window: 10 * time.Millisecond,
		Stalls: 15,
		Fault: func(reason string) {
			select {
			case faults <- reason:
			default:
			}
		},
	})
	wdDone := make(chan bool, 1)
	go func() { wdDone <- wd.Run() }()

	select {
	case reason := <-faults:
		t.Fatalf("watchdog fired during backoff: %s", reason)
	case <-time.After(500 * time.Millisecond):
	}
	if h.m.Attempts() < 2 {
		t.Fatalf("attempts = %d, want a retry after the pause", h.m.Attempts())
	}
	h.stopAndWait(t, 100*time.Millisecond)
	select {
	case faulted := <-wdDone:
		if faulted {
			t.Fatal("watchdog reported a fault")
		}
	case <-time.After(time.Second):
		t.Fatal("watchdog did not exit after stop")
	}
}

func TestStableLinkKeepsAdvancingMarker(t *testing.T) {
	radio := halsim.NewRadio(halsim.Succeed)
	h := start(t, radio, fastConfig())

	waitFor(t, "waiting for disconnect", func() bool { return h.m.State() == types.ConnWaitingForDisconnect })
	before := h.marker.Load()
	time.Sleep(30 * time.Millisecond)
	after := h.marker.Load()
	if after <= before {
		t.Fatalf("marker stalled on a stable link: %d -> %d", before, after)
	}
	if syncx.StepOf(after) != types.StepWaitDisconnect {
		t.Fatalf("step = %v", syncx.StepOf(after))
	}
}

func TestReconnectsAfterDrop(t *testing.T) {
	radio := halsim.NewRadio(halsim.Succeed, halsim.Succeed)
	h := start(t, radio, fastConfig())

	waitFor(t, "first link", func() bool { return h.m.State() == types.ConnWaitingForDisconnect })
	radio.Drop()
	waitFor(t, "second attempt", func() bool { return h.m.Attempts() == 2 })
	waitFor(t, "relinked", func() bool { return radio.Connected() })
	if starts, _, _ := radio.Counts(); starts != 1 {
		t.Fatalf("radio restarted %d times; a started radio should only reconnect", starts)
	}
}

func TestStartFailureIsRetried(t *testing.T) {
	radio := halsim.NewRadio()
	radio.StartErr = errors.New("firmware upload failed")
	h := start(t, radio, fastConfig())

	waitFor(t, "several start attempts", func() bool {
		starts, _, _ := radio.Counts()
		return starts >= 3
	})
	if h.m.Attempts() != 0 {
		t.Fatal("connect attempted without a started radio")
	}
}

func TestStartFailureFatalPolicy(t *testing.T) {
	radio := halsim.NewRadio()
	radio.ScanErr = errors.New("scan aborted")
	faults := make(chan string, 1)
	cfg := fastConfig()
	cfg.FatalStartErrors = true
	cfg.Fault = func(reason string) { faults <- reason }

	m := New(radio, &syncx.Marker{}, &syncx.Flag{}, cfg)
	done := make(chan struct{})
	go func() { m.Run(context.Background()); close(done) }()

	select {
	case reason := <-faults:
		if reason == "" {
			t.Fatal("empty fault reason")
		}
	case <-time.After(time.Second):
		t.Fatal("fault not raised")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("manager kept running after fault")
	}
}

func TestScanResultsAreCapped(t *testing.T) {
	radio := halsim.NewRadio(halsim.Succeed)
	for i := 0; i < 20; i++ {
		radio.APs = append(radio.APs, types.AccessPoint{SSID: "ap", Channel: uint8(i % 13)})
	}
	cfg := fastConfig()
	cfg.ScanMax = 3
	start(t, radio, cfg)
	waitFor(t, "connected", func() bool { return radio.Connected() })
	if radio.Station().SSID != "lab" {
		t.Fatalf("station config not applied: %+v", radio.Station())
	}
	if _, scans, _ := radio.Counts(); scans != 1 {
		t.Fatalf("scans = %d", scans)
	}
}

func TestPublishesStateOnBus(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(bus.T(types.TopicNet, types.TopicState))

	cfg := fastConfig()
	cfg.Conn = b.NewConnection("wifi")
	start(t, halsim.NewRadio(halsim.Succeed), cfg)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-sub.Channel():
			if s, ok := msg.Payload.(types.ConnState); ok && s == types.ConnConnected {
				return
			}
		case <-deadline:
			t.Fatal("connected state never published")
		}
	}
}
