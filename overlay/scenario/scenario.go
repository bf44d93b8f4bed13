// Package scenario loads YAML descriptions of a display engine and of the
// commit cycles to play on it. Buffers are filled with generated patterns
// so a scenario is self contained.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/layer"
	"github.com/valerio/go-overlay/overlay/sprite"
)

// File is a parsed scenario.
type File struct {
	Name    string                `yaml:"name"`
	Engine  EngineSpec            `yaml:"engine"`
	Planes  []PlaneSpec           `yaml:"planes"`
	Sprites int                   `yaml:"sprites"`
	Buffers map[string]BufferSpec `yaml:"buffers"`
	Cycles  []CycleSpec           `yaml:"cycles"`
}

// EngineSpec describes the output and the hardware units present.
type EngineSpec struct {
	ID            int    `yaml:"id"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	Scaler        *bool  `yaml:"scaler"`
	StatePoolSize int    `yaml:"state_pool_size"`
	BackColor     uint32 `yaml:"back_color"`
}

// HasScaler reports whether the scaler is present. It is unless the file
// says otherwise.
func (e EngineSpec) HasScaler() bool {
	return e.Scaler == nil || *e.Scaler
}

// PlaneSpec asks for one blender plane. Without any, the default plane
// set is used.
type PlaneSpec struct {
	Role string `yaml:"role"`
	Kind string `yaml:"kind"`
}

// BufferSpec describes a framebuffer and its generated content.
type BufferSpec struct {
	Format   string `yaml:"format"`
	Modifier string `yaml:"modifier"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Pattern  string `yaml:"pattern"`
	Color    uint32 `yaml:"color"`
}

// CycleSpec is one commit cycle.
type CycleSpec struct {
	Name     string        `yaml:"name"`
	TestOnly bool          `yaml:"test_only"`
	Planes   []RequestSpec `yaml:"planes"`
}

// RequestSpec targets either a layer or a sprite. An empty buffer turns
// the plane off. Src defaults to the whole buffer and Dst to the source
// size at the origin.
type RequestSpec struct {
	Layer  *int      `yaml:"layer"`
	Sprite *int      `yaml:"sprite"`
	Buffer string    `yaml:"buffer"`
	Src    *RectSpec `yaml:"src"`
	Dst    *RectSpec `yaml:"dst"`
	Zpos   *int      `yaml:"zpos"`
	Alpha  *uint16   `yaml:"alpha"`
}

// RectSpec is a rectangle in whole pixels.
type RectSpec struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

const defaultColor = 0xFF3080C0

// Load reads and validates a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks references and names without building anything. Plane
// configurations themselves are judged by the planes at commit time.
func (f *File) Validate() error {
	var errs []error

	if _, err := f.Descriptors(); err != nil {
		errs = append(errs, err)
	}
	if f.Sprites < 0 || f.Sprites > sprite.PoolSize {
		errs = append(errs, fmt.Errorf("sprites: %d outside [0, %d]", f.Sprites, sprite.PoolSize))
	}
	for name, b := range f.Buffers {
		if _, err := b.framebuffer(0); err != nil {
			errs = append(errs, fmt.Errorf("buffer %q: %w", name, err))
		}
	}
	for i, c := range f.Cycles {
		for j, r := range c.Planes {
			if err := f.checkRequest(r); err != nil {
				errs = append(errs, fmt.Errorf("cycle %d plane %d: %w", i, j, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (f *File) checkRequest(r RequestSpec) error {
	if (r.Layer == nil) == (r.Sprite == nil) {
		return errors.New("exactly one of layer and sprite must be set")
	}
	if r.Buffer != "" {
		if _, ok := f.Buffers[r.Buffer]; !ok {
			return fmt.Errorf("unknown buffer %q", r.Buffer)
		}
	}
	return nil
}

// Descriptors returns the plane set to create.
func (f *File) Descriptors() ([]layer.Descriptor, error) {
	if len(f.Planes) == 0 {
		return layer.DefaultDescriptors, nil
	}

	descs := make([]layer.Descriptor, 0, len(f.Planes))
	for i, p := range f.Planes {
		var d layer.Descriptor
		switch p.Role {
		case "primary":
			d.Role = layer.Primary
		case "overlay", "":
			d.Role = layer.Overlay
		default:
			return nil, fmt.Errorf("plane %d: unknown role %q", i, p.Role)
		}
		switch p.Kind {
		case "rgb", "":
			d.Kind = format.DirectOnly
		case "yuv":
			d.Kind = format.YUVCapable
		case "scaler":
			d.Kind = format.ScalerCapable
		default:
			return nil, fmt.Errorf("plane %d: unknown kind %q", i, p.Kind)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func (b BufferSpec) framebuffer(id int) (*kms.Framebuffer, error) {
	f, err := format.Parse(b.Format)
	if err != nil {
		return nil, err
	}
	mod, err := format.ParseModifier(b.Modifier)
	if err != nil {
		return nil, err
	}
	if b.Pattern != "" && !Pattern(b.Pattern).valid() {
		return nil, fmt.Errorf("unknown pattern %q", b.Pattern)
	}
	return kms.NewFramebuffer(id, f, mod, b.Width, b.Height, bufferBase+uint64(id)*bufferStride)
}

const (
	bufferBase   = 0x4000_0000
	bufferStride = 0x0100_0000
)
