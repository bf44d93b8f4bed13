// Package commit drives atomic commit cycles over the planes of one engine:
// duplicate, check, swap, update or disable, sweep, sprite pool transition,
// destroy. It plays the part of the host's atomic helpers.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/valerio/go-overlay/overlay/bit"
	"github.com/valerio/go-overlay/overlay/engine"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/layer"
	"github.com/valerio/go-overlay/overlay/sprite"
)

// Plane is what the pipeline needs from a layer or a sprite.
type Plane interface {
	Slot() int
	State() *kms.PlaneState
	DuplicateState() (*kms.PlaneState, error)
	SwapState(*kms.PlaneState) *kms.PlaneState
	AtomicCheck(*kms.PlaneState) error
	AtomicUpdate(*kms.PlaneState) error
	AtomicDisable(old *kms.PlaneState) error
}

// Request proposes a new configuration for one plane. A nil FB turns the
// plane off. Nil Zpos and Alpha keep the current values.
type Request struct {
	Slot  int
	FB    *kms.Framebuffer
	Src   kms.FixedRect
	Dst   kms.Rect
	Zpos  *int
	Alpha *uint16
}

// Cycle is one atomic commit.
type Cycle struct {
	Requests []Request
	// TestOnly checks the requests without touching hardware.
	TestOnly bool
}

// PlaneResult is the outcome of one request.
type PlaneResult struct {
	Slot       int
	Err        error
	UsesScaler bool
	Enabled    bool
}

// Result is the outcome of a cycle.
type Result struct {
	Planes []PlaneResult
	// Active holds the plane slots showing a buffer after the cycle.
	Active            uint64
	SpritePoolEnabled bool
}

// Err joins the errors of every rejected or failed plane.
func (r Result) Err() error {
	var errs []error
	for _, p := range r.Planes {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errors.Join(errs...)
}

// Pipeline runs commit cycles. Cycles are serialized; within a cycle the
// update and disable calls of different planes run concurrently.
type Pipeline struct {
	engine *engine.Engine
	pool   *sprite.Pool
	planes map[int]Plane

	mu     sync.Mutex
	active uint64
}

// New creates a pipeline over the given planes.
func New(e *engine.Engine, layers []*layer.Layer, sprites []*sprite.Sprite, pool *sprite.Pool) *Pipeline {
	p := &Pipeline{
		engine: e,
		pool:   pool,
		planes: make(map[int]Plane, len(layers)+len(sprites)),
	}
	for _, l := range layers {
		p.planes[l.Slot()] = l
	}
	for _, s := range sprites {
		p.planes[s.Slot()] = s
	}
	return p
}

// Slots returns the registered plane slots in order.
func (p *Pipeline) Slots() []int {
	slots := make([]int, 0, len(p.planes))
	for slot := range p.planes {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots
}

// Plane returns the plane at slot.
func (p *Pipeline) Plane(slot int) (Plane, bool) {
	pl, ok := p.planes[slot]
	return pl, ok
}

// Active returns the plane slots showing a buffer.
func (p *Pipeline) Active() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SpritePoolEnabled reports whether the sprite pool is switched on.
func (p *Pipeline) SpritePoolEnabled() bool {
	return p.pool != nil && p.pool.Enabled()
}

type staged struct {
	index int
	plane Plane
	state *kms.PlaneState
	old   *kms.PlaneState
}

// Commit runs one cycle. Rejected requests are reported per plane and do
// not stop the others. The returned error is set only when the cycle as a
// whole could not run.
func (p *Pipeline) Commit(ctx context.Context, c Cycle) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := Result{Planes: make([]PlaneResult, len(c.Requests))}
	stagedPlanes, zposChanged := p.check(c.Requests, res.Planes)

	if err := ctx.Err(); err != nil || c.TestOnly {
		for _, s := range stagedPlanes {
			s.state.Destroy()
		}
		res.Active = p.active
		res.SpritePoolEnabled = p.SpritePoolEnabled()
		return res, err
	}

	for i := range stagedPlanes {
		s := &stagedPlanes[i]
		s.old = s.plane.SwapState(s.state)
	}

	var g errgroup.Group
	for i := range stagedPlanes {
		s := stagedPlanes[i]
		g.Go(func() error {
			err := p.apply(s)
			res.Planes[s.index].Err = err
			return err
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("Plane programming failed", "engine", p.engine.ID(), "error", err)
	}

	p.engine.CommitComplete()

	var active uint64
	for slot, pl := range p.planes {
		if st := pl.State(); st != nil && st.HasFB() {
			active = bit.Set64(uint8(slot), active)
		}
	}
	if p.pool != nil {
		p.pool.CrtcUpdate(sprite.CrtcUpdate{
			OldActive:   p.active,
			NewActive:   active,
			ZposChanged: zposChanged,
		})
	}
	res.SpritePoolEnabled = p.SpritePoolEnabled()
	p.active = active
	res.Active = active

	for _, s := range stagedPlanes {
		s.old.Destroy()
	}

	slog.Debug("Commit complete", "engine", p.engine.ID(), "planes", len(c.Requests), "active", fmt.Sprintf("0x%X", active))
	return res, nil
}

// check duplicates and checks the state of every request. Accepted states
// are returned; results are filled in place.
func (p *Pipeline) check(reqs []Request, results []PlaneResult) ([]staged, bool) {
	requested := make(map[int]bool, len(reqs))
	for _, r := range reqs {
		requested[r.Slot] = true
	}

	// a plane left alone keeps the scaler if it is showing through it
	scalerTaken := false
	for slot, pl := range p.planes {
		if st := pl.State(); !requested[slot] && st != nil && st.HasFB() && st.UsesScaler {
			scalerTaken = true
		}
	}

	var out []staged
	zposChanged := false
	seen := make(map[int]bool, len(reqs))
	for i, r := range reqs {
		results[i].Slot = r.Slot

		pl, ok := p.planes[r.Slot]
		if !ok {
			results[i].Err = fmt.Errorf("slot %d: %w", r.Slot, kms.ErrIDOutOfRange)
			continue
		}
		if seen[r.Slot] {
			results[i].Err = fmt.Errorf("slot %d: %w: requested twice", r.Slot, kms.ErrInvalidConfig)
			continue
		}
		seen[r.Slot] = true

		st, err := pl.DuplicateState()
		if err != nil {
			results[i].Err = err
			continue
		}
		prevZpos := st.Zpos
		apply(st, r)

		if err := pl.AtomicCheck(st); err != nil {
			st.Destroy()
			results[i].Err = err
			continue
		}
		if st.HasFB() && st.UsesScaler {
			if scalerTaken {
				st.Destroy()
				results[i].Err = fmt.Errorf("slot %d: %w", r.Slot, kms.ErrScalerBusy)
				continue
			}
			scalerTaken = true
		}

		if st.Zpos != prevZpos {
			zposChanged = true
		}
		results[i].UsesScaler = st.HasFB() && st.UsesScaler
		results[i].Enabled = st.HasFB()
		out = append(out, staged{index: i, plane: pl, state: st})
	}
	return out, zposChanged
}

func apply(st *kms.PlaneState, r Request) {
	st.FB = r.FB
	if r.FB == nil {
		return
	}
	st.Src = r.Src
	st.Dst = r.Dst
	if r.Zpos != nil {
		st.Zpos = *r.Zpos
	}
	if r.Alpha != nil {
		st.Alpha = *r.Alpha
	}
}

// apply programs one staged plane. A plane that stops using the scaler
// without being disabled gives it up as well.
func (p *Pipeline) apply(s staged) error {
	wasOn := s.old != nil && s.old.HasFB()
	switch {
	case s.state.HasFB():
		if err := s.plane.AtomicUpdate(s.state); err != nil {
			return err
		}
		if wasOn && s.old.UsesScaler && !s.state.UsesScaler {
			p.engine.RequestScalerTeardown(s.plane.Slot())
		}
	case wasOn:
		return s.plane.AtomicDisable(s.old)
	}
	return nil
}
