// Package syncx holds the small lock-free handles shared between the node's
// tasks: one-shot stop flags and the liveness progress marker. Each has a
// single writer; readers only ever need the latest value.
package syncx

import (
	"sync/atomic"

	"telenode/types"
)

// Flag is a one-shot stop signal. The zero value is unset.
type Flag struct{ v atomic.Bool }

func (f *Flag) Set()        { f.v.Store(true) }
func (f *Flag) IsSet() bool { return f.v.Load() }

// Marker is the progress heartbeat written by a monitored task. Every
// Advance stores a new value (sequence in the high bits, step in the low
// byte), so consecutive writes of the same step still read as progress.
type Marker struct {
	v   atomic.Uint32
	seq uint32 // writer-owned
}

// Advance records that the writer crossed the given step boundary.
// Only one goroutine may call Advance.
func (m *Marker) Advance(s types.Step) uint32 {
	m.seq++
	v := m.seq<<8 | uint32(s)
	m.v.Store(v)
	return v
}

// Load returns the most recently written value.
func (m *Marker) Load() uint32 { return m.v.Load() }

// StepOf decodes the step from a marker value.
func StepOf(v uint32) types.Step { return types.Step(v & 0xFF) }

// SeqOf decodes the write sequence from a marker value.
func SeqOf(v uint32) uint32 { return v >> 8 }
