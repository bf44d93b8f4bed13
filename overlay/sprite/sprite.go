// Package sprite implements the sprite pool: up to 32 small non-scaling
// overlays drawn above the blender layers. Sprites have no per-unit
// hardware state of their own; the pool is switched on and off as a whole
// depending on whether any sprite plane is active.
package sprite

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valerio/go-overlay/overlay/engine"
	"github.com/valerio/go-overlay/overlay/kms"
)

// PoolSize is the number of sprite units.
const PoolSize = 32

// ZposStart is the lowest zpos of the sprite band, right above the layers.
const ZposStart = engine.NumLayers

// Sprite is one sprite plane.
type Sprite struct {
	id     int
	slot   int
	engine *engine.Engine
	pool   *kms.StatePool

	mu    sync.Mutex
	state *kms.PlaneState
}

// New registers sprite id with the engine. An id outside the pool is
// rejected and nothing is registered.
func New(e *engine.Engine, id int) (*Sprite, error) {
	if id < 0 || id >= PoolSize {
		return nil, fmt.Errorf("sprite %d: %w", id, kms.ErrIDOutOfRange)
	}

	pool := e.NewStatePool()
	state, err := pool.New()
	if err != nil {
		return nil, fmt.Errorf("sprite %d: %w", id, err)
	}
	state.Zpos = ZposStart + id

	slot, err := e.RegisterSpriteSlot(id, PoolSize)
	if err != nil {
		state.Destroy()
		return nil, fmt.Errorf("sprite %d: %w", id, err)
	}

	slog.Debug("Sprite registered", "engine", e.ID(), "sprite", id, "slot", slot)
	return &Sprite{
		id:     id,
		slot:   slot,
		engine: e,
		pool:   pool,
		state:  state,
	}, nil
}

// ID is the index of the sprite in the pool.
func (s *Sprite) ID() int {
	return s.id
}

// Slot is the plane slot of the sprite in the engine's plane masks.
func (s *Sprite) Slot() int {
	return s.slot
}

// ZposRange returns the band of zpos values a sprite may take.
func (s *Sprite) ZposRange() (int, int) {
	return ZposStart, ZposStart + PoolSize - 1
}

func (s *Sprite) State() *kms.PlaneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sprite) SwapState(state *kms.PlaneState) *kms.PlaneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.state
	s.state = state
	return old
}

func (s *Sprite) DuplicateState() (*kms.PlaneState, error) {
	dup, err := s.State().Duplicate()
	if err != nil {
		return nil, fmt.Errorf("sprite %d duplicate: %w", s.id, err)
	}
	return dup, nil
}

// AtomicCheck rejects any commit that would scale: sprites never scale.
func (s *Sprite) AtomicCheck(state *kms.PlaneState) error {
	if !state.HasFB() {
		return nil
	}
	if kms.IsScaled(state.Src, state.Dst) {
		return fmt.Errorf("sprite %d: %w: sprites cannot scale %s to %s",
			s.id, kms.ErrInvalidConfig, state.Src, state.Dst)
	}
	lo, hi := s.ZposRange()
	if state.Zpos < lo || state.Zpos > hi {
		return fmt.Errorf("sprite %d: %w: zpos %d outside [%d, %d]", s.id, kms.ErrInvalidConfig, state.Zpos, lo, hi)
	}
	return nil
}

// AtomicUpdate has no per-sprite hardware work; the pool follows the set of
// active sprites at CRTC commit time.
func (s *Sprite) AtomicUpdate(state *kms.PlaneState) error {
	slog.Debug("Sprite updated", "engine", s.engine.ID(), "sprite", s.id)
	return nil
}

// AtomicDisable has no per-sprite hardware work either.
func (s *Sprite) AtomicDisable(old *kms.PlaneState) error {
	slog.Debug("Sprite disabled", "engine", s.engine.ID(), "sprite", s.id)
	return nil
}
