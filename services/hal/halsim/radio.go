package halsim

import (
	"context"
	"errors"
	"sync"
	"time"

	"telenode/types"
)

// Outcome scripts one Connect call.
type Outcome uint8

const (
	// Succeed associates after ConnectDelay.
	Succeed Outcome = iota
	// Fail returns ErrAuth after ConnectDelay.
	Fail
	// HangCtx blocks until the caller's context ends.
	HangCtx
	// Hang blocks, ignoring the context, until Release is called.
	Hang
)

var (
	ErrAuth     = errors.New("halsim: association rejected")
	ErrNotReady = errors.New("halsim: radio not started")
)

// Radio is a scripted station-mode radio.
type Radio struct {
	mu        sync.Mutex
	cfg       types.StationConfig
	started   bool
	connected bool

	script []Outcome
	// Default applies once the script is exhausted.
	Default      Outcome
	ConnectDelay time.Duration
	StartErr     error
	ScanErr      error
	APs          []types.AccessPoint
	// OnConnect, when set, runs at the top of every Connect call.
	OnConnect func(n int)

	connects int
	starts   int
	scans    int

	disc    chan struct{}
	release chan struct{}
}

// NewRadio creates a radio whose Connect calls follow script, then Default.
func NewRadio(script ...Outcome) *Radio {
	return &Radio{
		script:  script,
		disc:    make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (r *Radio) Configure(cfg types.StationConfig) error {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	return nil
}

func (r *Radio) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.StartErr != nil {
		return r.StartErr
	}
	r.started = true
	return nil
}

func (r *Radio) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *Radio) Scan(ctx context.Context, max int) ([]types.AccessPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans++
	if r.ScanErr != nil {
		return nil, r.ScanErr
	}
	aps := r.APs
	if len(aps) > max {
		aps = aps[:max]
	}
	return append([]types.AccessPoint(nil), aps...), nil
}

func (r *Radio) Connect(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return ErrNotReady
	}
	r.connects++
	n := r.connects
	out := r.Default
	if len(r.script) > 0 {
		out = r.script[0]
		r.script = r.script[1:]
	}
	hook, delay, release := r.OnConnect, r.ConnectDelay, r.release
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	switch out {
	case HangCtx:
		<-ctx.Done()
		return ctx.Err()
	case Hang:
		<-release
		return ErrAuth
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if out == Fail {
		return ErrAuth
	}
	r.mu.Lock()
	r.connected = true
	select {
	case <-r.disc: // drop a stale event
	default:
	}
	r.mu.Unlock()
	return nil
}

func (r *Radio) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Radio) WaitDisconnect(ctx context.Context) error {
	select {
	case <-r.disc:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drop simulates the access point going away.
func (r *Radio) Drop() {
	r.mu.Lock()
	was := r.connected
	r.connected = false
	r.mu.Unlock()
	if was {
		select {
		case r.disc <- struct{}{}:
		default:
		}
	}
}

// Release unblocks every Connect stuck in Hang.
func (r *Radio) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.release:
	default:
		close(r.release)
	}
}

// Station returns the last applied configuration.
func (r *Radio) Station() types.StationConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Counts returns start, scan and connect call counts.
func (r *Radio) Counts() (starts, scans, connects int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.scans, r.connects
}
