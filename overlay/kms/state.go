package kms

import (
	"fmt"
	"sync"
)

// AlphaOpaque is the plane alpha value for a fully opaque plane.
const AlphaOpaque uint16 = 0xFFFF

// PlaneState is the per-commit configuration of one plane. It is a value
// type: Duplicate copies every field, so a check run against the copy never
// leaks into the state that is currently on screen.
type PlaneState struct {
	Src   FixedRect
	Dst   Rect
	FB    *Framebuffer
	Zpos  int
	Alpha uint16

	// UsesScaler is derived at check time and carried across duplication so
	// the disable path sees the value that was in effect.
	UsesScaler bool

	pool *StatePool
}

// HasFB reports whether the state has a buffer attached. A state without a
// buffer describes an unused plane.
func (s *PlaneState) HasFB() bool {
	return s.FB != nil
}

// Duplicate returns a structural copy of s allocated from the same pool.
func (s *PlaneState) Duplicate() (*PlaneState, error) {
	if err := s.pool.get(); err != nil {
		return nil, err
	}
	dup := *s
	return &dup, nil
}

// Destroy releases the state back to its pool. Destroying a state twice is a
// no-op.
func (s *PlaneState) Destroy() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.put()
	s.pool = nil
}

func (s *PlaneState) String() string {
	fb := "none"
	if s.FB != nil {
		fb = fmt.Sprintf("%d:%s", s.FB.ID, s.FB.Format)
	}
	return fmt.Sprintf("src=%s dst=%s fb=%s zpos=%d alpha=0x%04X scaler=%t",
		s.Src, s.Dst, fb, s.Zpos, s.Alpha, s.UsesScaler)
}

// StatePool bounds the number of live plane states for one plane. Hardware
// drivers run commits from a fixed budget; running out is reported as
// ErrNoMemory instead of growing.
type StatePool struct {
	mu       sync.Mutex
	capacity int
	live     int
}

// NewStatePool creates a pool holding at most capacity live states.
func NewStatePool(capacity int) *StatePool {
	return &StatePool{capacity: capacity}
}

// New allocates a fresh state from the pool.
func (p *StatePool) New() (*PlaneState, error) {
	if err := p.get(); err != nil {
		return nil, err
	}
	return &PlaneState{Alpha: AlphaOpaque, pool: p}, nil
}

// Live returns the number of states currently allocated.
func (p *StatePool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *StatePool) get() error {
	if p == nil {
		return fmt.Errorf("%w: state has no pool", ErrNoMemory)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live >= p.capacity {
		return fmt.Errorf("%w: %d states live", ErrNoMemory, p.live)
	}
	p.live++
	return nil
}

func (p *StatePool) put() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live > 0 {
		p.live--
	}
}
