// Package watchdog is the liveness monitor. It samples a progress marker
// once per window and forces a hard fault when the value has not changed for
// a configured number of consecutive windows. It does not try to work out why
// progress stalled: a stuck task cannot be trusted to clean up after itself,
// so the only recovery is a reset.
package watchdog

import (
	"log/slog"
	"time"

	"telenode/services/hal"
	"telenode/x/conv"
	"telenode/x/syncx"
)

// Config controls the monitor. Zero fields take defaults.
type Config struct {
	// Window is the sampling period. Default 1 s.
	Window time.Duration
	// Stalls is how many consecutive unchanged windows trigger the fault.
	// Default 15.
	Stalls int

	Logger *slog.Logger
	Fault  hal.FaultFunc
}

// Monitor counts consecutive stalled samples. Only strict inequality with the
// previous sample counts as progress.
type Monitor struct {
	limit   int
	last    uint32
	primed  bool
	stalled int
}

// NewMonitor creates a stall counter that trips after limit stalled samples.
func NewMonitor(limit int) *Monitor { return &Monitor{limit: limit} }

// Observe records one sample and reports whether the fault threshold has
// been reached. The first sample only establishes the baseline.
func (m *Monitor) Observe(v uint32) bool {
	if !m.primed {
		m.primed = true
		m.last = v
		return false
	}
	if v != m.last {
		m.last = v
		m.stalled = 0
		return false
	}
	m.stalled++
	return m.stalled >= m.limit
}

// Stalled returns the current run of unchanged samples.
func (m *Monitor) Stalled() int { return m.stalled }

// Service runs a Monitor against a live marker.
type Service struct {
	cfg      Config
	progress *syncx.Marker
	stop     *syncx.Flag
	log      *slog.Logger
}

// New creates the watchdog service. stop is the monitored task's stop flag:
// once that task has been told to stop, its silence is not a stall.
func New(progress *syncx.Marker, stop *syncx.Flag, cfg Config) *Service {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Stalls <= 0 {
		cfg.Stalls = 15
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{cfg: cfg, progress: progress, stop: stop, log: cfg.Logger.With("svc", "watchdog")}
}

// Start launches Run in its own goroutine.
func (s *Service) Start() {
	go s.Run()
}

// Run samples until the stop flag is set or the fault fires. It returns true
// if it faulted.
func (s *Service) Run() bool {
	mon := NewMonitor(s.cfg.Stalls)
	mon.Observe(s.progress.Load())

	tick := time.NewTicker(s.cfg.Window)
	defer tick.Stop()

	for range tick.C {
		if s.stop.IsSet() {
			s.log.Debug("watchdog: stopping")
			return false
		}
		v := s.progress.Load()
		if !mon.Observe(v) {
			if n := mon.Stalled(); n > 0 {
				s.log.Debug("watchdog: no progress", "windows", n, "step", syncx.StepOf(v).String())
			}
			continue
		}
		reason := faultReason(mon.Stalled(), v)
		s.log.Error(reason)
		s.fault(reason)
		return true
	}
	return false
}

// faultReason names the stuck step and the raw marker, e.g.
// "watchdog: no progress for 15 windows, stuck at connect (marker 0000041A)".
func faultReason(windows int, marker uint32) string {
	b := make([]byte, 0, 96)
	b = append(b, "watchdog: no progress for "...)
	b = conv.AppendInt(b, int64(windows))
	b = append(b, " windows, stuck at "...)
	b = append(b, syncx.StepOf(marker).String()...)
	b = append(b, " (marker "...)
	b = conv.AppendHex32(b, marker)
	return string(append(b, ')'))
}

func (s *Service) fault(reason string) {
	if s.cfg.Fault != nil {
		s.cfg.Fault(reason)
		return
	}
	panic(reason)
}
