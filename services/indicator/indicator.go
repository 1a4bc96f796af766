// Package indicator blinks the board LED while the node is awake. The pattern
// is a fast flicker while connecting and a slow pulse once the link is up.
package indicator

import (
	"log/slog"
	"time"

	"telenode/bus"
	"telenode/services/hal"
	"telenode/types"
	"telenode/x/syncx"
)

// Pattern is one on/off blink period.
type Pattern struct {
	On  time.Duration
	Off time.Duration
}

var (
	// Seeking is shown until the radio reports a connection.
	Seeking = Pattern{On: 20 * time.Millisecond, Off: 50 * time.Millisecond}
	// Linked is shown while connected.
	Linked = Pattern{On: 20 * time.Millisecond, Off: 980 * time.Millisecond}
)

type Config struct {
	Seeking Pattern
	Linked  Pattern
	// PollInterval bounds how long a stop request can go unnoticed.
	// Default 50 ms.
	PollInterval time.Duration
	Logger       *slog.Logger
	// Conn, if set, is subscribed to net/state to pick the pattern.
	Conn *bus.Connection
}

type Service struct {
	led  hal.GPIOPin
	stop *syncx.Flag
	cfg  Config
	log  *slog.Logger
}

func New(led hal.GPIOPin, stop *syncx.Flag, cfg Config) *Service {
	if cfg.Seeking == (Pattern{}) {
		cfg.Seeking = Seeking
	}
	if cfg.Linked == (Pattern{}) {
		cfg.Linked = Linked
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{led: led, stop: stop, cfg: cfg, log: cfg.Logger.With("svc", "indicator")}
}

// Start launches Run in its own goroutine.
func (s *Service) Start() {
	go s.Run()
}

// Run blinks until the stop flag is set, then leaves the LED off.
func (s *Service) Run() {
	if err := s.led.ConfigureOutput(false); err != nil {
		s.log.Warn("indicator: led unavailable", "err", err)
		return
	}
	defer s.led.Set(false)

	var states <-chan *bus.Message
	if s.cfg.Conn != nil {
		sub := s.cfg.Conn.Subscribe(bus.T(types.TopicNet, types.TopicState))
		defer s.cfg.Conn.Unsubscribe(sub)
		states = sub.Channel()
	}

	p := s.cfg.Seeking
	on := false
	tick := time.NewTimer(0)
	defer tick.Stop()
	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()

	for {
		if s.stop.IsSet() {
			s.log.Debug("indicator: stopping")
			return
		}
		select {
		case <-poll.C:
		case msg := <-states:
			if st, ok := msg.Payload.(types.ConnState); ok {
				next := s.cfg.Seeking
				if st == types.ConnConnected {
					next = s.cfg.Linked
				}
				if next != p {
					p = next
					s.log.Debug("indicator: pattern", "state", st.String())
				}
			}
		case <-tick.C:
			on = !on
			s.led.Set(on)
			d := p.Off
			if on {
				d = p.On
			}
			tick.Reset(d)
		}
	}
}
