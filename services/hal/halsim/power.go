package halsim

import (
	"sync"
	"time"
)

// Power records sleep requests. With Real set it also blocks for the
// requested duration, standing in for the wake timer.
type Power struct {
	Real bool

	mu     sync.Mutex
	sleeps []time.Duration
}

func (p *Power) Sleep(d time.Duration) {
	p.mu.Lock()
	p.sleeps = append(p.sleeps, d)
	p.mu.Unlock()
	if p.Real {
		time.Sleep(d)
	}
}

// Sleeps returns every requested duration in order.
func (p *Power) Sleeps() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.sleeps...)
}
