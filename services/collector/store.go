package collector

import (
	"context"
	"sync"
	"time"
)

// TimeLayout is the wall-clock format used in history entries.
const TimeLayout = "15:04:05"

// Sample is one accepted reading.
type Sample struct {
	Temp   *float64
	Hum    *float64
	At     time.Time
	Remote string
}

// Entry is the history wire shape.
type Entry struct {
	Temp *float64 `json:"temp"`
	Hum  *float64 `json:"hum"`
	Time string   `json:"time"`
}

func (s Sample) Entry() Entry {
	return Entry{Temp: s.Temp, Hum: s.Hum, Time: s.At.Format(TimeLayout)}
}

// Store keeps the latest sample and a bounded history, oldest evicted first.
type Store interface {
	Add(ctx context.Context, s Sample) error
	Latest(ctx context.Context) (Sample, bool, error)
	History(ctx context.Context) ([]Sample, error)
	Close() error
}

// MemoryStore is a fixed-capacity ring.
type MemoryStore struct {
	mu    sync.RWMutex
	buf   []Sample
	head  int // next write
	count int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryStore{buf: make([]Sample, capacity)}
}

func (m *MemoryStore) Add(_ context.Context, s Sample) error {
	m.mu.Lock()
	m.buf[m.head] = s
	m.head = (m.head + 1) % len(m.buf)
	if m.count < len(m.buf) {
		m.count++
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Latest(_ context.Context) (Sample, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.count == 0 {
		return Sample{}, false, nil
	}
	i := (m.head - 1 + len(m.buf)) % len(m.buf)
	return m.buf[i], true, nil
}

// History returns samples oldest first.
func (m *MemoryStore) History(_ context.Context) ([]Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sample, 0, m.count)
	start := (m.head - m.count + len(m.buf)) % len(m.buf)
	for i := 0; i < m.count; i++ {
		out = append(out, m.buf[(start+i)%len(m.buf)])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
