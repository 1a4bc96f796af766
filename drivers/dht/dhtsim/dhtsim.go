// Package dhtsim simulates a single-wire sensor on a virtual timeline. The
// Line implements hal.GPIOPin and answers a host start pulse with the exact
// waveform a real sensor produces; the Clock advances only when read or
// delayed, so decoding is deterministic.
package dhtsim

import (
	"errors"
	"sync"

	"telenode/services/hal"
)

// Clock is a virtual microsecond clock. Each Micros call advances it by Tick
// (default 1 µs), modelling the cost of one polling iteration.
type Clock struct {
	mu   sync.Mutex
	now  int64
	Tick int64
}

func (c *Clock) Micros() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.Tick
	if t <= 0 {
		t = 1
	}
	c.now += t
	return c.now
}

func (c *Clock) DelayMicros(us int64) {
	if us <= 0 {
		return
	}
	c.mu.Lock()
	c.now += us
	c.mu.Unlock()
}

func (c *Clock) peek() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Protocol timings in microseconds.
const (
	MinStartLow  = 18000
	ResponseWait = 20
	PreambleLow  = 80
	PreambleHigh = 80
	BitLow       = 50
	ZeroHigh     = 26
	OneHigh      = 70
	TrailLow     = 50
)

// Behaviour selects how the simulated sensor responds.
type Behaviour uint8

const (
	// Respond sends the configured frame.
	Respond Behaviour = iota
	// Silent never answers; the line stays high on the pull-up.
	Silent
	// StuckLow pulls the line low and never releases it.
	StuckLow
	// Truncate stops transmitting after CutAfterBits bits.
	Truncate
)

// ErrModeRefused is returned when RefuseMode is set.
var ErrModeRefused = errors.New("dhtsim: mode change refused")

type segment struct {
	level bool
	dur   int64
}

// Line is a simulated data line with one sensor attached.
type Line struct {
	mu  sync.Mutex
	clk *Clock
	pin int

	frame        [5]byte
	behaviour    Behaviour
	cutAfterBits int

	// RefuseMode makes ConfigureInput/ConfigureOutput fail.
	RefuseMode bool

	output   bool
	driven   bool
	lowSince int64
	lowHeld  int64

	wave  []segment
	t0    int64
	armed bool

	starts int
}

// NewLine creates a line on clk carrying frame.
func NewLine(clk *Clock, pin int, frame [5]byte) *Line {
	return &Line{clk: clk, pin: pin, frame: frame, driven: true}
}

// SetFrame changes the frame sent on the next exchange.
func (l *Line) SetFrame(f [5]byte) {
	l.mu.Lock()
	l.frame = f
	l.mu.Unlock()
}

// SetBehaviour changes how the sensor answers the next exchange.
func (l *Line) SetBehaviour(b Behaviour, cutAfterBits int) {
	l.mu.Lock()
	l.behaviour = b
	l.cutAfterBits = cutAfterBits
	l.mu.Unlock()
}

// Starts returns how many valid start pulses the sensor has seen.
func (l *Line) Starts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts
}

// ---- hal.GPIOPin ----

func (l *Line) ConfigureOutput(initial bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.RefuseMode {
		return ErrModeRefused
	}
	l.output = true
	l.armed = false
	l.setLocked(initial)
	return nil
}

func (l *Line) ConfigureInput(_ hal.Pull) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.RefuseMode {
		return ErrModeRefused
	}
	l.output = false
	if l.lowHeld >= MinStartLow {
		l.starts++
		l.arm()
	}
	l.lowHeld = 0
	return nil
}

func (l *Line) Set(level bool) {
	l.mu.Lock()
	l.setLocked(level)
	l.mu.Unlock()
}

func (l *Line) setLocked(level bool) {
	now := l.clk.peek()
	if l.driven && !level {
		l.lowSince = now
	}
	if !l.driven && level {
		l.lowHeld = now - l.lowSince
	}
	l.driven = level
}

func (l *Line) Toggle() { l.Set(!l.Get()) }

func (l *Line) Number() int { return l.pin }

// Get returns the line level at the clock's current time.
func (l *Line) Get() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.output {
		return l.driven
	}
	if !l.armed {
		return true
	}
	t := l.clk.peek() - l.t0
	for _, s := range l.wave {
		if t < s.dur {
			return s.level
		}
		t -= s.dur
	}
	return true
}

// arm lays out the response waveform starting now.
func (l *Line) arm() {
	l.t0 = l.clk.peek()
	l.armed = true
	l.wave = l.wave[:0]
	switch l.behaviour {
	case Silent:
		l.armed = false
		return
	case StuckLow:
		l.wave = append(l.wave,
			segment{true, ResponseWait},
			segment{false, 1 << 62})
		return
	}
	l.wave = append(l.wave,
		segment{true, ResponseWait},
		segment{false, PreambleLow},
		segment{true, PreambleHigh})
	bits := 40
	if l.behaviour == Truncate && l.cutAfterBits < bits {
		bits = l.cutAfterBits
	}
	for i := 0; i < bits; i++ {
		b := l.frame[i/8] & (0x80 >> uint(i%8))
		high := int64(ZeroHigh)
		if b != 0 {
			high = OneHigh
		}
		l.wave = append(l.wave, segment{false, BitLow}, segment{true, high})
	}
	if l.behaviour == Truncate {
		// Sender died mid-frame: line floats high from here on.
		return
	}
	l.wave = append(l.wave, segment{false, TrailLow})
}
