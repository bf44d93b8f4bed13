package layer

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-overlay/overlay/engine"
	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
)

// Descriptor asks for one plane at init time.
type Descriptor struct {
	Role Role
	Kind format.Kind
}

// DefaultDescriptors is the plane set of a four layer blender: an RGB
// primary that never scales, an overlay that may use the scaler, one
// overlay taking packed YUV and a last RGB overlay.
var DefaultDescriptors = []Descriptor{
	{Role: Primary, Kind: format.DirectOnly},
	{Role: Overlay, Kind: format.ScalerCapable},
	{Role: Overlay, Kind: format.YUVCapable},
	{Role: Overlay, Kind: format.DirectOnly},
}

// PlaneInfo is what the host learns about a plane when it is registered.
type PlaneInfo struct {
	ID          int
	Role        Role
	Capability  format.Capability
	ZposMin     int
	ZposMax     int
	ZposDefault int
}

// Registrar is the host side of plane registration.
type Registrar interface {
	RegisterPlane(info PlaneInfo, l *Layer) error
}

// Init creates the planes described by descs, in order. The first entry
// must be the primary plane and its failure aborts init. Overlays that
// fail are logged and left out of the returned list.
func Init(e *engine.Engine, host Registrar, descs []Descriptor) ([]*Layer, error) {
	if len(descs) == 0 || descs[0].Role != Primary {
		return nil, fmt.Errorf("%w: first plane must be primary", kms.ErrInitFailed)
	}

	layers := make([]*Layer, 0, len(descs))
	for id, desc := range descs {
		l, err := initOne(e, host, id, desc)
		if err == nil {
			layers = append(layers, l)
			continue
		}
		if desc.Role == Primary {
			for _, created := range layers {
				created.Destroy()
			}
			return nil, fmt.Errorf("primary plane: %w", err)
		}
		slog.Warn("Couldn't initialize overlay plane", "engine", e.ID(), "layer", id, "error", err)
	}

	return layers, nil
}

func initOne(e *engine.Engine, host Registrar, id int, desc Descriptor) (*Layer, error) {
	kind := desc.Kind
	if kind == format.ScalerCapable && !e.HasScaler() {
		kind = format.DirectOnly
	}
	if id >= engine.NumLayers {
		return nil, fmt.Errorf("%w: %w: layer %d", kms.ErrInitFailed, kms.ErrIDOutOfRange, id)
	}

	l := newLayer(e, id, desc.Role, kind)
	if err := l.ResetState(); err != nil {
		return nil, fmt.Errorf("%w: %w", kms.ErrInitFailed, err)
	}

	if host != nil {
		info := PlaneInfo{
			ID:          id,
			Role:        desc.Role,
			Capability:  l.Capability(),
			ZposMin:     0,
			ZposMax:     engine.NumLayers - 1,
			ZposDefault: id,
		}
		if err := host.RegisterPlane(info, l); err != nil {
			l.Destroy()
			return nil, fmt.Errorf("%w: %w", kms.ErrInitFailed, err)
		}
	}

	if err := e.RegisterLayerSlot(id); err != nil {
		l.Destroy()
		return nil, err
	}

	slog.Info("Plane registered", "engine", e.ID(), "layer", id, "role", desc.Role, "kind", kind)
	return l, nil
}
