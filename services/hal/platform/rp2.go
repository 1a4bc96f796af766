//go:build rp2040 || rp2350

package platform

import (
	"context"
	"errors"
	"log/slog"
	"machine"
	"net"
	"net/netip"
	"sync"
	"time"

	"tinygo.org/x/drivers/netdev"
	"tinygo.org/x/drivers/netlink"
	"tinygo.org/x/drivers/netlink/probe"

	"telenode/services/config"
	"telenode/services/hal"
	"telenode/types"
	"telenode/x/timex"
)

// Board returns the Pico W board: GPIO through machine.Pin, the CYW43 radio
// through netlink, and power/fault handling through the hardware watchdog.
func Board(cfg config.Config, log *slog.Logger) hal.Board {
	radio := &linkRadio{down: make(chan struct{}, 1)}
	return hal.Board{
		Name:      cfg.Device,
		SensorPin: &gpio{p: machine.Pin(cfg.SensorPin)},
		LED:       &gpio{p: machine.Pin(cfg.LEDPin)},
		Clock:     timex.System(),
		Radio:     radio,
		Net:       &linkNet{radio: radio},
		Power:     resetPower{},
		Fault: func(reason string) {
			log.Error("fault: resetting", "reason", reason)
			reset()
		},
	}
}

// ---- GPIO ----

type gpio struct{ p machine.Pin }

func (g *gpio) ConfigureInput(pull hal.Pull) error {
	mode := machine.PinInput
	switch pull {
	case hal.PullUp:
		mode = machine.PinInputPullup
	case hal.PullDown:
		mode = machine.PinInputPulldown
	}
	g.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (g *gpio) ConfigureOutput(initial bool) error {
	g.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	g.p.Set(initial)
	return nil
}

func (g *gpio) Set(level bool) { g.p.Set(level) }
func (g *gpio) Get() bool      { return g.p.Get() }
func (g *gpio) Toggle()        { g.p.Set(!g.p.Get()) }
func (g *gpio) Number() int    { return int(g.p) }

// ---- Radio (netlink) ----

var errNotProbed = errors.New("platform: radio not started")

type linkRadio struct {
	mu      sync.Mutex
	params  netlink.ConnectParams
	link    netlink.Netlinker
	dev     netdev.Netdever
	up      bool
	started bool
	down    chan struct{}
}

func (r *linkRadio) Configure(cfg types.StationConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = netlink.ConnectParams{
		Ssid:        cfg.SSID,
		Passphrase:  cfg.Password,
		ConnectMode: netlink.ConnectModeSTA,
	}
	return nil
}

func (r *linkRadio) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	r.link, r.dev = probe.Probe()
	if r.link == nil {
		return errNotProbed
	}
	r.link.NetNotify(r.notify)
	r.started = true
	return nil
}

func (r *linkRadio) notify(e netlink.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e {
	case netlink.EventNetUp:
		r.up = true
	case netlink.EventNetDown:
		r.up = false
		select {
		case r.down <- struct{}{}:
		default:
		}
	}
}

func (r *linkRadio) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Scan is not exposed by netlink; the list is always empty.
func (r *linkRadio) Scan(ctx context.Context, max int) ([]types.AccessPoint, error) {
	if !r.Started() {
		return nil, errNotProbed
	}
	return nil, nil
}

func (r *linkRadio) Connect(ctx context.Context) error {
	r.mu.Lock()
	link, params := r.link, r.params
	r.mu.Unlock()
	if link == nil {
		return errNotProbed
	}
	if err := link.NetConnect(&params); err != nil {
		return err
	}
	r.mu.Lock()
	r.up = true
	select {
	case <-r.down:
	default:
	}
	r.mu.Unlock()
	return nil
}

func (r *linkRadio) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.up
}

func (r *linkRadio) WaitDisconnect(ctx context.Context) error {
	select {
	case <-r.down:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---- Network ----

type linkNet struct {
	radio  *linkRadio
	dialer net.Dialer
}

func (n *linkNet) LinkUp() bool { return n.radio.Connected() }

func (n *linkNet) Addr() (netip.Addr, bool) {
	n.radio.mu.Lock()
	dev := n.radio.dev
	n.radio.mu.Unlock()
	if dev == nil || !n.LinkUp() {
		return netip.Addr{}, false
	}
	a, err := dev.Addr()
	if err != nil || !a.IsValid() || a.IsUnspecified() {
		return netip.Addr{}, false
	}
	return a, true
}

func (n *linkNet) Dial(ctx context.Context, addr netip.AddrPort) (hal.Conn, error) {
	c, err := n.dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ---- Power ----

// resetPower waits out the sleep period then resets, so the next cycle
// starts from a clean boot.
type resetPower struct{}

func (resetPower) Sleep(d time.Duration) {
	time.Sleep(d)
	reset()
}

func reset() {
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
	machine.Watchdog.Start()
	for {
	}
}
