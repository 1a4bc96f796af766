// Package hal declares the hardware and network collaborators the node
// depends on. Implementations live in hal/platform, selected by build tags.
package hal

import (
	"context"
	"io"
	"net/netip"
	"time"

	"telenode/types"
	"telenode/x/timex"
)

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIOPin is a bidirectional pin that can switch between input and output.
type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
	Number() int
}

// ---- Wireless radio ----

// Radio is the station-mode driver surface used by the connectivity manager.
// Blocking calls take a context; implementations should honour it but callers
// must not rely on that.
type Radio interface {
	Configure(cfg types.StationConfig) error
	Start(ctx context.Context) error
	Started() bool
	Scan(ctx context.Context, max int) ([]types.AccessPoint, error)
	Connect(ctx context.Context) error
	Connected() bool
	// WaitDisconnect blocks until the link drops or ctx ends.
	WaitDisconnect(ctx context.Context) error
}

// ---- Network stack ----

// Conn is a byte stream with an I/O deadline.
type Conn interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
}

// NetStack is the IP layer above the radio.
type NetStack interface {
	LinkUp() bool
	// Addr reports the configured IPv4 address once DHCP has completed.
	Addr() (netip.Addr, bool)
	Dial(ctx context.Context, addr netip.AddrPort) (Conn, error)
}

// ---- Power ----

// Power puts the device into low-power sleep. On hardware Sleep does not
// return: the device wakes through reset.
type Power interface {
	Sleep(d time.Duration)
}

// FaultFunc performs an unrecoverable abort (hard reset on hardware).
type FaultFunc func(reason string)

// Board bundles one platform's collaborators.
type Board struct {
	Name      string
	SensorPin GPIOPin
	LED       GPIOPin
	Clock     timex.Clock
	Radio     Radio
	Net       NetStack
	Power     Power
	Fault     FaultFunc
}
