// Package halsim provides simulated hardware for host builds and tests.
package halsim

import (
	"sync"

	"telenode/services/hal"
)

// FakePin implements hal.GPIOPin and records what was driven on it.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	pull    hal.Pull
	writes  int
	rises   int
}

// NewFakePin creates a pin with the given number.
func NewFakePin(n int) *FakePin { return &FakePin{number: n} }

func (p *FakePin) ConfigureInput(pull hal.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.pull = pull
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.setLocked(initial)
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.setLocked(level)
	p.mu.Unlock()
}

func (p *FakePin) setLocked(level bool) {
	if !p.level && level {
		p.rises++
	}
	p.level = level
	p.writes++
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Toggle() {
	p.mu.Lock()
	p.setLocked(!p.level)
	p.mu.Unlock()
}

func (p *FakePin) Number() int { return p.number }

// IsOutput reports whether the pin is configured as an output.
func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

// Writes returns the number of level writes so far.
func (p *FakePin) Writes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.writes
}

// Rises returns the number of low-to-high transitions so far.
func (p *FakePin) Rises() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rises
}
