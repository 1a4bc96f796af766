// Package wifi runs the connectivity manager: it brings the station up,
// keeps it associated, and retries through failures until told to stop.
//
// Every step boundary advances the shared liveness marker. That is the only
// coupling to the watchdog; the two never call each other.
package wifi

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"telenode/bus"
	"telenode/errcode"
	"telenode/services/hal"
	"telenode/types"
	"telenode/x/syncx"
)

// Config controls the manager. Zero durations take defaults.
type Config struct {
	Station types.StationConfig

	// ConnectTimeout bounds one association attempt, independently of any
	// timeout inside the radio driver. Default 10 s. Keep it below the
	// watchdog's stall limit.
	ConnectTimeout time.Duration
	// StartTimeout bounds radio start and scan. Default 10 s.
	StartTimeout time.Duration
	// ConnectedPause debounces after a successful connect. Default 2 s.
	ConnectedPause time.Duration
	// RetryPause is the uniform backoff after any failure. Default 5 s.
	RetryPause time.Duration
	// ReconnectPause follows a disconnect event. Default 5 s.
	ReconnectPause time.Duration
	// PollInterval slices every wait so the stop flag is seen promptly and
	// the marker keeps moving through long pauses. Keep it below the
	// watchdog window. Default 500 ms.
	PollInterval time.Duration
	// ScanMax caps the scan result list. Default 10.
	ScanMax int
	// FatalStartErrors restores crash-on-failure for radio configure, start
	// and scan errors. When false they are logged and retried.
	FatalStartErrors bool

	Logger *slog.Logger
	Fault  hal.FaultFunc
	Conn   *bus.Connection // optional; receives retained net/state updates
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 10 * time.Second
	}
	if c.ConnectedPause <= 0 {
		c.ConnectedPause = 2 * time.Second
	}
	if c.RetryPause <= 0 {
		c.RetryPause = 5 * time.Second
	}
	if c.ReconnectPause <= 0 {
		c.ReconnectPause = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.ScanMax <= 0 {
		c.ScanMax = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the radio for the lifetime of one duty cycle.
type Manager struct {
	cfg      Config
	radio    hal.Radio
	progress *syncx.Marker
	stop     *syncx.Flag
	log      *slog.Logger

	state    atomic.Uint32
	attempts atomic.Uint32
}

// New creates a manager. progress and stop are shared with the watchdog and
// the orchestrator respectively.
func New(radio hal.Radio, progress *syncx.Marker, stop *syncx.Flag, cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:      cfg,
		radio:    radio,
		progress: progress,
		stop:     stop,
		log:      cfg.Logger.With("svc", "wifi"),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() types.ConnState { return types.ConnState(m.state.Load()) }

// Attempts returns how many association attempts have been made.
func (m *Manager) Attempts() int { return int(m.attempts.Load()) }

// Start launches Run in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	go m.Run(ctx)
}

// Run loops until the stop flag is set. The flag is checked first on every
// iteration, and every wait inside the loop is sliced by PollInterval.
func (m *Manager) Run(ctx context.Context) {
	m.log.Info("wifi: starting", "ssid", m.cfg.Station.SSID)
	m.setState(types.ConnIdle)
	for {
		if m.stop.IsSet() {
			m.setState(types.ConnStopped)
			m.progress.Advance(types.StepStopped)
			m.log.Info("wifi: stopped")
			return
		}
		m.progress.Advance(types.StepLoop)

		if m.radio.Connected() {
			m.awaitDisconnect(ctx)
			continue
		}

		if !m.radio.Started() {
			if err := m.bringUp(ctx); err != nil {
				if m.stop.IsSet() {
					continue
				}
				m.log.Error("wifi: radio bring-up failed", "err", err)
				if m.cfg.FatalStartErrors {
					m.fault("wifi: radio bring-up failed: " + err.Error())
					return
				}
				m.setState(types.ConnIdle)
				m.pause(m.cfg.RetryPause)
				continue
			}
		}

		m.setState(types.ConnConnecting)
		m.progress.Advance(types.StepConnect)
		n := m.attempts.Add(1)
		m.log.Info("wifi: connecting", "ssid", m.cfg.Station.SSID, "attempt", n)

		err := m.bounded(ctx, m.cfg.ConnectTimeout, m.radio.Connect)
		if errors.Is(err, errcode.Stopped) {
			continue
		}
		if err == nil {
			m.setState(types.ConnConnected)
			m.progress.Advance(types.StepConnected)
			m.log.Info("wifi: connected", "attempt", n)
			m.pause(m.cfg.ConnectedPause)
			continue
		}

		m.setState(types.ConnIdle)
		m.progress.Advance(types.StepConnectFailed)
		m.log.Warn("wifi: connect failed", "attempt", n, "err", err)
		m.pause(m.cfg.RetryPause)
	}
}

// awaitDisconnect waits for the driver's disconnect event one poll slice at a
// time, so a stable link still advances the marker and the stop flag is seen.
func (m *Manager) awaitDisconnect(ctx context.Context) {
	m.setState(types.ConnWaitingForDisconnect)
	for !m.stop.IsSet() {
		m.progress.Advance(types.StepWaitDisconnect)
		wctx, cancel := context.WithTimeout(ctx, m.cfg.PollInterval)
		err := m.radio.WaitDisconnect(wctx)
		cancel()
		if err == nil {
			m.progress.Advance(types.StepDisconnected)
			m.log.Warn("wifi: disconnected")
			m.setState(types.ConnIdle)
			m.pause(m.cfg.ReconnectPause)
			return
		}
		if ctx.Err() != nil {
			m.pause(m.cfg.PollInterval)
			return
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			m.log.Warn("wifi: disconnect wait failed", "err", err)
			m.pause(m.cfg.PollInterval)
		}
	}
}

// bringUp applies station config, starts the radio and scans.
func (m *Manager) bringUp(ctx context.Context) error {
	m.setState(types.ConnStarting)
	m.progress.Advance(types.StepConfigure)
	if err := m.radio.Configure(m.cfg.Station); err != nil {
		return errcode.Wrap(errcode.NotStarted, "wifi.configure", err)
	}

	m.progress.Advance(types.StepStart)
	m.log.Info("wifi: starting radio")
	if err := m.bounded(ctx, m.cfg.StartTimeout, m.radio.Start); err != nil {
		return errcode.Wrap(errcode.NotStarted, "wifi.start", err)
	}
	m.log.Info("wifi: radio started")

	m.setState(types.ConnScanning)
	m.progress.Advance(types.StepScan)
	var aps []types.AccessPoint
	err := m.bounded(ctx, m.cfg.StartTimeout, func(c context.Context) error {
		var err error
		aps, err = m.radio.Scan(c, m.cfg.ScanMax)
		return err
	})
	if err != nil {
		return errcode.Wrap(errcode.NotStarted, "wifi.scan", err)
	}
	if len(aps) > m.cfg.ScanMax {
		aps = aps[:m.cfg.ScanMax]
	}
	for _, ap := range aps {
		m.log.Debug("wifi: scan", "ssid", ap.SSID, "rssi", ap.RSSI, "channel", ap.Channel)
	}
	m.log.Info("wifi: scan complete", "found", len(aps))
	return nil
}

// pause waits d in PollInterval slices, returning early once stop is set.
// Each slice advances the marker: a pause is progress, not a stall.
func (m *Manager) pause(d time.Duration) {
	m.progress.Advance(types.StepPause)
	for d > 0 && !m.stop.IsSet() {
		m.progress.Advance(types.StepPause)
		s := min(d, m.cfg.PollInterval)
		time.Sleep(s)
		d -= s
	}
}

func (m *Manager) setState(s types.ConnState) {
	if types.ConnState(m.state.Swap(uint32(s))) == s {
		return
	}
	if m.cfg.Conn != nil {
		m.cfg.Conn.Publish(m.cfg.Conn.NewMessage(bus.T(types.TopicNet, types.TopicState), s, true))
	}
}

func (m *Manager) fault(reason string) {
	if m.cfg.Fault != nil {
		m.cfg.Fault(reason)
		return
	}
	panic(reason)
}

// bounded runs fn with a deadline enforced here rather than trusted to fn:
// a driver that ignores its context still cannot hold the caller past d.
// The stop flag is polled every PollInterval and abandons the call early
// with errcode.Stopped. The abandoned call keeps its goroutine until the
// driver returns.
func (m *Manager) bounded(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(cctx) }()

	poll := time.NewTicker(m.cfg.PollInterval)
	defer poll.Stop()
	for {
		select {
		case err := <-done:
			if errors.Is(err, context.DeadlineExceeded) {
				return errcode.Timeout
			}
			return err
		case <-poll.C:
			if m.stop.IsSet() {
				return errcode.Stopped
			}
		case <-cctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errcode.Timeout
		}
	}
}
