package halsim

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"

	"telenode/services/hal"
)

// LinkSource reports link-layer attachment; *Radio satisfies it.
type LinkSource interface {
	Connected() bool
}

// Net is a host network stack whose link follows a simulated radio. Dial uses
// the host's real TCP stack, so the node can talk to a local collector.
type Net struct {
	Link LinkSource
	// Address handed out once the link has been up for DHCPDelay.
	Address   netip.Addr
	DHCPDelay time.Duration

	mu     sync.Mutex
	upAt   time.Time
	dialer net.Dialer
}

func (n *Net) LinkUp() bool {
	up := n.Link != nil && n.Link.Connected()
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case up && n.upAt.IsZero():
		n.upAt = time.Now()
	case !up:
		n.upAt = time.Time{}
	}
	return up
}

func (n *Net) Addr() (netip.Addr, bool) {
	if !n.LinkUp() {
		return netip.Addr{}, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if time.Since(n.upAt) < n.DHCPDelay || !n.Address.IsValid() {
		return netip.Addr{}, false
	}
	return n.Address, true
}

// ErrNoRoute is returned by Dial while a linked Net has no address.
var ErrNoRoute = errors.New("halsim: no route to host")

// Dial connects over the host TCP stack. When Link is set the simulated
// interface must have an address first.
func (n *Net) Dial(ctx context.Context, addr netip.AddrPort) (hal.Conn, error) {
	if n.Link != nil {
		if _, ok := n.Addr(); !ok {
			return nil, ErrNoRoute
		}
	}
	c, err := n.dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, err
	}
	return c, nil
}
