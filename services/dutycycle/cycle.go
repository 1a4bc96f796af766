// Package dutycycle sequences one wake cycle: read the sensor, bring the
// network up, send the reading, stop every background task and hand the
// device to the low-power transition. Cycles share no state.
package dutycycle

import (
	"context"
	"log/slog"
	"time"

	"telenode/bus"
	"telenode/services/hal"
	"telenode/services/indicator"
	"telenode/services/telemetry"
	"telenode/services/watchdog"
	"telenode/services/wifi"
	"telenode/types"
	"telenode/x/syncx"
	"telenode/x/timex"
)

// Sensor is the reading source; *dht.Device satisfies it.
type Sensor interface {
	Read() (types.Reading, error)
}

type Config struct {
	// LinkPoll is the poll interval while waiting for the link and the
	// address. Default 500 ms.
	LinkPoll time.Duration
	// LinkCeiling bounds each of those waits. Default 60 s.
	LinkCeiling time.Duration
	// Grace is the non-suspending wait after the stop flags are set.
	// Default 1.5 s.
	Grace time.Duration
	// SleepFor is passed to the low-power transition. Default 10 min.
	SleepFor time.Duration

	Wifi      wifi.Config
	Watchdog  watchdog.Config
	Indicator indicator.Config
	Telemetry telemetry.Config

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.LinkPoll <= 0 {
		c.LinkPoll = 500 * time.Millisecond
	}
	if c.LinkCeiling <= 0 {
		c.LinkCeiling = 60 * time.Second
	}
	if c.Grace <= 0 {
		c.Grace = 1500 * time.Millisecond
	}
	if c.SleepFor <= 0 {
		c.SleepFor = 10 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Result describes how a cycle went. On hardware nobody sees it because
// Sleep does not return; the host simulator and tests do.
type Result struct {
	Reading   types.Reading
	SensorErr error

	LinkAfter    time.Duration
	LinkTimedOut bool
	AddrAfter    time.Duration
	AddrTimedOut bool

	Response telemetry.Response
	SendErr  error

	// Lingering names tasks that had not exited when the grace period ended.
	Lingering []string
}

type Cycle struct {
	board  hal.Board
	sensor Sensor
	cfg    Config
	log    *slog.Logger
}

func New(board hal.Board, sensor Sensor, cfg Config) *Cycle {
	cfg.applyDefaults()
	return &Cycle{board: board, sensor: sensor, cfg: cfg, log: cfg.Logger.With("svc", "dutycycle")}
}

// task tracks one background goroutine.
type task struct {
	name string
	done syncx.Flag
}

func (c *Cycle) spawn(tasks *[]*task, name string, fn func()) {
	t := &task{name: name}
	*tasks = append(*tasks, t)
	go func() {
		defer t.done.Set()
		fn()
	}()
}

// Run executes one cycle and ends with Power.Sleep.
func (c *Cycle) Run(ctx context.Context) Result {
	var res Result
	start := time.Now()

	res.Reading, res.SensorErr = c.sensor.Read()
	if res.SensorErr != nil {
		c.log.Warn("dutycycle: sensor read failed, sending placeholder", "err", res.SensorErr)
		res.Reading = types.Placeholder
	} else {
		c.log.Info("dutycycle: reading", "temp", res.Reading.Temperature, "hum", res.Reading.Humidity)
	}

	var (
		progress syncx.Marker
		netStop  syncx.Flag
		ledStop  syncx.Flag
		tasks    []*task
		b        = bus.NewBus(4)
	)

	icfg := c.cfg.Indicator
	icfg.Conn = b.NewConnection("indicator")
	if icfg.Logger == nil {
		icfg.Logger = c.cfg.Logger
	}
	if c.board.LED != nil {
		led := indicator.New(c.board.LED, &ledStop, icfg)
		c.spawn(&tasks, "indicator", led.Run)
	}

	wdcfg := c.cfg.Watchdog
	if wdcfg.Fault == nil {
		wdcfg.Fault = c.board.Fault
	}
	if wdcfg.Logger == nil {
		wdcfg.Logger = c.cfg.Logger
	}
	wd := watchdog.New(&progress, &netStop, wdcfg)
	c.spawn(&tasks, "watchdog", func() { wd.Run() })

	wcfg := c.cfg.Wifi
	wcfg.Conn = b.NewConnection("wifi")
	if wcfg.Fault == nil {
		wcfg.Fault = c.board.Fault
	}
	if wcfg.Logger == nil {
		wcfg.Logger = c.cfg.Logger
	}
	mgr := wifi.New(c.board.Radio, &progress, &netStop, wcfg)
	c.spawn(&tasks, "wifi", func() { mgr.Run(ctx) })

	var ok bool
	res.LinkAfter, ok = c.waitFor(ctx, "link", c.board.Net.LinkUp)
	res.LinkTimedOut = !ok
	res.AddrAfter, ok = c.waitFor(ctx, "address", func() bool {
		_, ok := c.board.Net.Addr()
		return ok
	})
	res.AddrTimedOut = !ok

	tcfg := c.cfg.Telemetry
	if tcfg.Logger == nil {
		tcfg.Logger = c.cfg.Logger
	}
	res.Response, res.SendErr = telemetry.New(c.board.Net, tcfg).Send(ctx, res.Reading)
	if res.SendErr != nil {
		c.log.Warn("dutycycle: send failed", "err", res.SendErr)
	}

	netStop.Set()
	ledStop.Set()
	timex.Spin(c.cfg.Grace)

	for _, t := range tasks {
		if !t.done.IsSet() {
			res.Lingering = append(res.Lingering, t.name)
		}
	}
	if len(res.Lingering) > 0 {
		c.log.Warn("dutycycle: tasks still running at sleep", "tasks", res.Lingering)
	}

	c.log.Info("dutycycle: sleeping", "for", c.cfg.SleepFor, "awake", time.Since(start))
	c.board.Power.Sleep(c.cfg.SleepFor)
	return res
}

// waitFor polls cond every LinkPoll until it holds, ctx ends, or
// LinkCeiling passes. It reports the elapsed time and whether cond held.
func (c *Cycle) waitFor(ctx context.Context, what string, cond func() bool) (time.Duration, bool) {
	start := time.Now()
	deadline := start.Add(c.cfg.LinkCeiling)
	tick := time.NewTicker(c.cfg.LinkPoll)
	defer tick.Stop()
	for {
		if cond() {
			el := time.Since(start)
			c.log.Info("dutycycle: "+what+" up", "after", el)
			return el, true
		}
		if !time.Now().Before(deadline) {
			c.log.Warn("dutycycle: "+what+" wait timed out, continuing", "after", c.cfg.LinkCeiling)
			return time.Since(start), false
		}
		select {
		case <-ctx.Done():
			return time.Since(start), false
		case <-tick.C:
		}
	}
}
