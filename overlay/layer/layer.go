// Package layer implements the planes of the blender: their state life
// cycle, the check that decides whether a commit goes through the scaler,
// and the update and disable paths that program the hardware.
package layer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/valerio/go-overlay/overlay/engine"
	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/scaler"
)

// Role is the role a plane is exposed with.
type Role int

const (
	Primary Role = iota
	Overlay
)

func (r Role) String() string {
	if r == Primary {
		return "primary"
	}
	return "overlay"
}

// Layer is one blender plane. It is created once at engine init.
type Layer struct {
	id     int
	role   Role
	caps   format.Capability
	engine *engine.Engine
	scaler scaler.Scaler // nil unless the layer may use the scaler
	pool   *kms.StatePool

	mu    sync.Mutex
	state *kms.PlaneState
}

func newLayer(e *engine.Engine, id int, role Role, kind format.Kind) *Layer {
	l := &Layer{
		id:     id,
		role:   role,
		caps:   format.For(kind),
		engine: e,
		pool:   e.NewStatePool(),
	}
	if kind == format.ScalerCapable {
		l.scaler = e.Scaler()
	}
	return l
}

// ID is the stable index of the layer in the blender.
func (l *Layer) ID() int {
	return l.id
}

// Slot is the plane slot of the layer in the engine's plane masks.
func (l *Layer) Slot() int {
	return l.id
}

// Role returns whether the layer is the primary plane.
func (l *Layer) Role() Role {
	return l.role
}

// Kind returns the capability kind of the layer.
func (l *Layer) Kind() format.Kind {
	return l.caps.Kind
}

// Capability returns the formats and modifiers the layer advertises.
func (l *Layer) Capability() format.Capability {
	return format.For(l.caps.Kind)
}

// EligibleForScaler reports whether commits on this layer may use the scaler.
func (l *Layer) EligibleForScaler() bool {
	return l.scaler != nil
}

// YUVCapable reports whether the layer reads packed YUV without the scaler.
func (l *Layer) YUVCapable() bool {
	return l.caps.Kind != format.DirectOnly
}

// FormatModSupported reports whether (f, mod) can be shown on this layer:
// either the blender reads it directly or the engine's scaler can.
func (l *Layer) FormatModSupported(f format.Fourcc, mod format.Modifier) bool {
	if format.IsDirect(l.caps.Kind, f, mod) {
		return true
	}
	sc := l.engine.Scaler()
	if sc == nil {
		return false
	}
	return sc.FormatModSupported(f, mod)
}

// State returns the installed state.
func (l *Layer) State() *kms.PlaneState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SwapState installs state and returns the state it replaces. The caller
// owns the returned state and must destroy it.
func (l *Layer) SwapState(state *kms.PlaneState) *kms.PlaneState {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.state
	l.state = state
	return old
}

// ResetState replaces the installed state with a fresh one whose zpos
// matches the layer index.
func (l *Layer) ResetState() error {
	fresh, err := l.pool.New()
	if err != nil {
		return fmt.Errorf("layer %d reset: %w", l.id, err)
	}
	fresh.Zpos = l.id

	l.SwapState(fresh).Destroy()
	return nil
}

// DuplicateState copies the installed state for a new commit cycle. On
// failure nothing is allocated.
func (l *Layer) DuplicateState() (*kms.PlaneState, error) {
	cur := l.State()
	if cur == nil {
		return nil, fmt.Errorf("layer %d: %w: no installed state", l.id, kms.ErrNoMemory)
	}
	dup, err := cur.Duplicate()
	if err != nil {
		return nil, fmt.Errorf("layer %d duplicate: %w", l.id, err)
	}
	return dup, nil
}

// DestroyState releases a state that is not installed.
func (l *Layer) DestroyState(state *kms.PlaneState) {
	state.Destroy()
}

// Destroy releases the installed state. The layer is unusable afterwards.
func (l *Layer) Destroy() {
	l.SwapState(nil).Destroy()
}

// AtomicCheck validates a proposed state and records in it whether the
// commit goes through the scaler. A rejected state is left untouched.
func (l *Layer) AtomicCheck(state *kms.PlaneState) error {
	usesScaler := false
	if kms.IsScaled(state.Src, state.Dst) {
		if !l.EligibleForScaler() {
			// planes without a buffer are checked even when unused
			if !state.HasFB() {
				state.UsesScaler = false
				return nil
			}
			return fmt.Errorf("layer %d: %w: scaling %s to %s needs the scaler",
				l.id, kms.ErrInvalidConfig, state.Src, state.Dst)
		}
		usesScaler = true
	} else if l.EligibleForScaler() && state.HasFB() {
		// the blender cannot read multi-planar or YUV buffers itself
		usesScaler = state.FB.Info().NeedsConversion()
	}

	if state.HasFB() {
		if err := l.validate(state, usesScaler); err != nil {
			return fmt.Errorf("layer %d: %w", l.id, err)
		}
	}

	state.UsesScaler = usesScaler
	return nil
}

func (l *Layer) validate(state *kms.PlaneState, usesScaler bool) error {
	fb := state.FB
	if state.Zpos < 0 || state.Zpos >= engine.NumLayers {
		return fmt.Errorf("%w: zpos %d outside [0, %d]", kms.ErrInvalidConfig, state.Zpos, engine.NumLayers-1)
	}
	if state.Dst.W <= 0 || state.Dst.H <= 0 {
		return fmt.Errorf("%w: empty destination %s", kms.ErrInvalidConfig, state.Dst)
	}
	if !l.caps.Has(fb.Format) {
		return fmt.Errorf("%w: format %s not offered by %s layer", kms.ErrInvalidConfig, fb.Format, l.caps.Kind)
	}
	if usesScaler {
		if !l.scaler.FormatModSupported(fb.Format, fb.Modifier) {
			return fmt.Errorf("%w: scaler cannot read %s/%s", kms.ErrInvalidConfig, fb.Format, fb.Modifier)
		}
		return nil
	}
	if !format.IsDirect(l.caps.Kind, fb.Format, fb.Modifier) {
		return fmt.Errorf("%w: blender cannot read %s/%s", kms.ErrInvalidConfig, fb.Format, fb.Modifier)
	}
	return nil
}

// AtomicUpdate programs an approved state and enables the layer. Geometry,
// format and buffer are written before the enable bit exposes them.
func (l *Layer) AtomicUpdate(state *kms.PlaneState) error {
	if !state.HasFB() {
		return fmt.Errorf("layer %d: %w: update without buffer", l.id, kms.ErrInvalidConfig)
	}

	var err error
	if state.UsesScaler {
		err = l.updateScaled(state)
	} else {
		err = errors.Join(
			l.engine.UpdateLayerFormats(l.id, state),
			l.engine.UpdateLayerBuffer(l.id, state),
		)
	}
	if err != nil {
		return fmt.Errorf("layer %d update: %w", l.id, err)
	}

	if err := l.engine.UpdateLayerCoord(l.id, state); err != nil {
		return fmt.Errorf("layer %d update: %w", l.id, err)
	}
	if err := l.engine.UpdateLayerZpos(l.id, state); err != nil {
		return fmt.Errorf("layer %d update: %w", l.id, err)
	}
	if err := l.engine.UpdateLayerAlpha(l.id, state); err != nil {
		return fmt.Errorf("layer %d update: %w", l.id, err)
	}
	if err := l.engine.LayerEnable(l.id, true); err != nil {
		return fmt.Errorf("layer %d update: %w", l.id, err)
	}

	slog.Debug("Layer updated", "engine", l.engine.ID(), "layer", l.id, "state", state.String())
	return nil
}

func (l *Layer) updateScaled(state *kms.PlaneState) error {
	if l.scaler == nil {
		return fmt.Errorf("%w: layer %d cannot use the scaler", kms.ErrInvalidConfig, l.id)
	}
	if err := l.engine.ClaimScaler(l.id); err != nil {
		return err
	}
	if err := l.scaler.UpdateCoordinates(state); err != nil {
		return err
	}
	if err := l.scaler.UpdateBuffer(state); err != nil {
		return err
	}

	out := IntermediateFormat(state.FB.Info())
	if err := l.scaler.SetOutputFormat(state, out); err != nil {
		return err
	}
	if err := l.engine.UpdateLayerFrontend(l.id, out); err != nil {
		return err
	}
	l.scaler.Enable()
	return nil
}

// IntermediateFormat is the format the scaler hands the blender for a
// buffer: 32-bit RGB, with alpha only if the buffer carries alpha.
func IntermediateFormat(info format.Info) format.Fourcc {
	if info.HasAlpha {
		return format.ARGB8888
	}
	return format.XRGB8888
}

// AtomicDisable turns the layer off. If old used the scaler, its teardown
// is requested from the engine and carried out once the cycle completes.
func (l *Layer) AtomicDisable(old *kms.PlaneState) error {
	if err := l.engine.LayerEnable(l.id, false); err != nil {
		return fmt.Errorf("layer %d disable: %w", l.id, err)
	}
	if old != nil && old.UsesScaler {
		l.engine.RequestScalerTeardown(l.id)
	}
	slog.Debug("Layer disabled", "engine", l.engine.ID(), "layer", l.id)
	return nil
}
