// Package engine models the blender of a display engine: the unit that
// stacks up to four layers and a sprite pool into one output image.
//
// Besides programming the layer registers, the engine owns the optional
// scaler and coordinates its teardown. Disabling a plane that used the
// scaler never stops the unit directly; it marks a teardown as pending and
// CommitComplete performs it once every plane of the cycle is done.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valerio/go-overlay/overlay/bit"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/regs"
	"github.com/valerio/go-overlay/overlay/scaler"
)

const (
	// NumLayers is the number of blender layers.
	NumLayers = 4
	// MaxSlots bounds the plane slot masks.
	MaxSlots = 64

	defaultWidth     = 320
	defaultHeight    = 180
	defaultPoolSize  = 4
	defaultBackColor = 0xFF101010
)

// Config holds the static description of one engine instance.
type Config struct {
	ID        int
	Width     int
	Height    int
	BackColor uint32 // ARGB
	// StatePoolSize is the number of live plane states each plane may hold.
	StatePoolSize int
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = defaultWidth
	}
	if c.Height <= 0 {
		c.Height = defaultHeight
	}
	if c.BackColor == 0 {
		c.BackColor = defaultBackColor
	}
	if c.StatePoolSize <= 0 {
		c.StatePoolSize = defaultPoolSize
	}
	return c
}

// Engine is one blender instance. It lives from device attach to detach.
type Engine struct {
	cfg    Config
	regs   regs.Map
	scaler scaler.Scaler

	// mu guards scaler ownership and teardown, and the slot masks
	mu              sync.Mutex
	teardownPending bool
	scalerClaimed   bool
	teardowns       int
	slotMask        uint64
	spriteMask      uint64

	shadowMu sync.Mutex
	shadow   [NumLayers]layerShadow
}

// New creates an engine driving r. sc may be nil on hardware without a scaler.
func New(cfg Config, r regs.Map, sc scaler.Scaler) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:    cfg,
		regs:   r,
		scaler: sc,
	}
	for i := range e.shadow {
		e.shadow[i].alpha = kms.AlphaOpaque
	}

	r.Write(regs.DispSize, packSize(cfg.Width, cfg.Height))
	r.Write(regs.BackColor, cfg.BackColor)
	r.Write(regs.ModCtl, 1<<regs.ModCtlEngineEn|1<<regs.ModCtlStart)

	slog.Info("Display engine attached",
		"engine", cfg.ID,
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"scaler", sc != nil)
	return e
}

// ID identifies the engine instance.
func (e *Engine) ID() int {
	return e.cfg.ID
}

// Config returns the configuration the engine was created with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Scaler returns the scaler, or nil when the hardware has none.
func (e *Engine) Scaler() scaler.Scaler {
	return e.scaler
}

// HasScaler reports whether a scaler is present.
func (e *Engine) HasScaler() bool {
	return e.scaler != nil
}

// NewStatePool returns a plane state pool sized from the configuration.
func (e *Engine) NewStatePool() *kms.StatePool {
	return kms.NewStatePool(e.cfg.StatePoolSize)
}

// ClaimScaler brings the scaler out of reset on behalf of layer. A
// successful claim cancels a teardown requested in the same cycle.
func (e *Engine) ClaimScaler(layer int) error {
	if e.scaler == nil {
		return fmt.Errorf("%w: engine %d has no scaler", kms.ErrInvalidConfig, e.cfg.ID)
	}

	if err := e.scaler.Init(); err != nil {
		return fmt.Errorf("scaler init for layer %d: %w", layer, err)
	}

	e.mu.Lock()
	e.scalerClaimed = true
	e.mu.Unlock()
	slog.Debug("Scaler claimed", "engine", e.cfg.ID, "layer", layer)
	return nil
}

// RequestScalerTeardown marks the scaler for teardown at the end of the
// cycle. It never touches the scaler itself.
func (e *Engine) RequestScalerTeardown(layer int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownPending = true
	slog.Debug("Scaler teardown requested", "engine", e.cfg.ID, "layer", layer)
}

// TeardownPending reports whether a scaler teardown is waiting for the sweep.
func (e *Engine) TeardownPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.teardownPending
}

// Teardowns returns how many times the scaler was physically torn down.
func (e *Engine) Teardowns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.teardowns
}

// CommitComplete runs after every plane of a cycle was updated or disabled.
// It performs a pending scaler teardown unless a plane claimed the scaler in
// the same cycle, then latches the shadow registers.
func (e *Engine) CommitComplete() {
	e.mu.Lock()
	if e.teardownPending {
		e.teardownPending = false
		if e.scalerClaimed {
			slog.Debug("Scaler teardown skipped, reclaimed in this cycle", "engine", e.cfg.ID)
		} else if e.scaler != nil {
			e.scaler.Exit()
			e.teardowns++
		}
	}
	e.scalerClaimed = false
	e.mu.Unlock()

	e.regs.Update(regs.RegBuffCtl, 1<<regs.RegBuffLoadCtl, 1<<regs.RegBuffLoadCtl)
}

// RegisterLayerSlot records that a layer occupies its plane slot.
func (e *Engine) RegisterLayerSlot(layer int) error {
	if layer < 0 || layer >= NumLayers {
		return fmt.Errorf("%w: layer %d", kms.ErrIDOutOfRange, layer)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if bit.IsSet64(uint8(layer), e.slotMask) {
		return fmt.Errorf("%w: layer %d already registered", kms.ErrInitFailed, layer)
	}
	e.slotMask = bit.Set64(uint8(layer), e.slotMask)
	return nil
}

// RegisterSpriteSlot allocates the plane slot of sprite id and adds it to the
// sprite mask. Slots stay allocated for the life of the engine.
func (e *Engine) RegisterSpriteSlot(id, poolSize int) (int, error) {
	if id < 0 || id >= poolSize {
		return 0, fmt.Errorf("%w: sprite %d, pool holds %d", kms.ErrIDOutOfRange, id, poolSize)
	}
	slot := NumLayers + id
	if slot >= MaxSlots {
		return 0, fmt.Errorf("%w: sprite %d has no plane slot", kms.ErrIDOutOfRange, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if bit.IsSet64(uint8(slot), e.slotMask) {
		return 0, fmt.Errorf("%w: sprite %d already registered", kms.ErrInitFailed, id)
	}
	e.slotMask = bit.Set64(uint8(slot), e.slotMask)
	e.spriteMask = bit.Set64(uint8(slot), e.spriteMask)
	return slot, nil
}

// SpriteMask returns the plane slots that belong to sprites.
func (e *Engine) SpriteMask() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spriteMask
}

// SlotMask returns every registered plane slot.
func (e *Engine) SlotMask() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slotMask
}

// Regs exposes the blender register file to collaborators sharing it.
func (e *Engine) Regs() regs.Map {
	return e.regs
}

func packSize(w, h int) uint32 {
	return bit.InsertBits(uint32(w-1)&0x1FFF, 28, 16, uint32(h-1))
}
