package sprite

import (
	"log/slog"
	"sync"

	"github.com/valerio/go-overlay/overlay/engine"
	"github.com/valerio/go-overlay/overlay/regs"
)

// CrtcUpdate carries the CRTC level signals of one output commit.
type CrtcUpdate struct {
	OldActive   uint64 // plane slots active before the commit
	NewActive   uint64 // plane slots active after the commit
	ZposChanged bool
}

// Pool tracks whether the sprite pool is switched on.
type Pool struct {
	engine *engine.Engine
	regs   regs.Map

	mu      sync.Mutex
	enabled bool
}

// NewPool returns the pool of an engine, initially disabled.
func NewPool(e *engine.Engine) *Pool {
	return &Pool{
		engine: e,
		regs:   e.Regs(),
	}
}

// Enabled reports whether the pool is switched on.
func (p *Pool) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// CrtcUpdate switches the pool on when the first sprite becomes active and
// off when the last one goes away. The enable register is written only on
// those transitions.
func (p *Pool) CrtcUpdate(u CrtcUpdate) {
	mask := p.engine.SpriteMask()
	was := u.OldActive&mask != 0
	now := u.NewActive&mask != 0

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case was && !now:
		p.regs.Write(regs.SpriteEn, 0)
		p.enabled = false
		slog.Debug("Sprite pool disabled", "engine", p.engine.ID())
	case !was && now:
		p.regs.Write(regs.SpriteEn, 1)
		p.enabled = true
		slog.Debug("Sprite pool enabled", "engine", p.engine.ID())
	}

	if u.ZposChanged && now {
		p.regs.Write(regs.SpriteBand, uint32(ZposStart))
	}
}
