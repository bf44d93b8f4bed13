package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/valerio/go-overlay/overlay/commit"
	"github.com/valerio/go-overlay/overlay/engine"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/layer"
	"github.com/valerio/go-overlay/overlay/regs"
	"github.com/valerio/go-overlay/overlay/scaler"
	"github.com/valerio/go-overlay/overlay/sprite"
)

// Options override parts of a scenario from the command line.
type Options struct {
	NoScaler bool
	// TestOnly turns every cycle into a dry run.
	TestOnly bool
	Host     layer.Registrar
}

// Device is an engine built from a scenario, with its planes and buffers.
type Device struct {
	Engine     *engine.Engine
	Regs       *regs.Memory
	ScalerRegs *regs.Memory
	Scaler     *scaler.Software
	Layers     []*layer.Layer
	Sprites    []*sprite.Sprite
	Pipeline   *commit.Pipeline
	Buffers    map[string]*kms.Framebuffer

	file *File
	opts Options
}

// Step is the outcome of one played cycle.
type Step struct {
	Index  int
	Name   string
	Cycle  commit.Cycle
	Result commit.Result
}

// Build creates the engine, planes, sprites and buffers of a scenario.
func Build(f *File, opts Options) (*Device, error) {
	descs, err := f.Descriptors()
	if err != nil {
		return nil, err
	}

	d := &Device{
		Regs:    regs.NewMemory("blender"),
		Buffers: make(map[string]*kms.Framebuffer, len(f.Buffers)),
		file:    f,
		opts:    opts,
	}

	// engine.New takes an interface; a nil *Software must not leak into it
	var sc scaler.Scaler
	if f.Engine.HasScaler() && !opts.NoScaler {
		d.ScalerRegs = regs.NewMemory("scaler")
		d.Scaler = scaler.NewSoftware(d.ScalerRegs)
		sc = d.Scaler
	}

	d.Engine = engine.New(engine.Config{
		ID:            f.Engine.ID,
		Width:         f.Engine.Width,
		Height:        f.Engine.Height,
		BackColor:     f.Engine.BackColor,
		StatePoolSize: f.Engine.StatePoolSize,
	}, d.Regs, sc)

	d.Layers, err = layer.Init(d.Engine, opts.Host, descs)
	if err != nil {
		return nil, err
	}

	for id := 0; id < f.Sprites; id++ {
		s, err := sprite.New(d.Engine, id)
		if err != nil {
			return nil, err
		}
		d.Sprites = append(d.Sprites, s)
	}
	d.Pipeline = commit.New(d.Engine, d.Layers, d.Sprites, sprite.NewPool(d.Engine))

	names := make([]string, 0, len(f.Buffers))
	for name := range f.Buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		spec := f.Buffers[name]
		fb, err := spec.framebuffer(i + 1)
		if err != nil {
			return nil, fmt.Errorf("buffer %q: %w", name, err)
		}
		p := Pattern(spec.Pattern)
		if p == "" {
			p = Checkerboard
		}
		c := spec.Color
		if c == 0 {
			c = defaultColor
		}
		if err := Fill(fb, p, c); err != nil {
			return nil, fmt.Errorf("buffer %q: %w", name, err)
		}
		d.Buffers[name] = fb
	}

	slog.Info("Scenario device built",
		"scenario", f.Name,
		"layers", len(d.Layers),
		"sprites", len(d.Sprites),
		"buffers", len(d.Buffers),
		"scaler", sc != nil)
	return d, nil
}

// Cycles returns the number of cycles in the scenario.
func (d *Device) Cycles() int {
	return len(d.file.Cycles)
}

// CycleName returns the name of cycle i, or "" if it has none.
func (d *Device) CycleName(i int) string {
	if i < 0 || i >= len(d.file.Cycles) {
		return ""
	}
	return d.file.Cycles[i].Name
}

// Name returns the scenario name.
func (d *Device) Name() string {
	return d.file.Name
}

// Cycle translates cycle i into pipeline requests.
func (d *Device) Cycle(i int) (commit.Cycle, error) {
	if i < 0 || i >= len(d.file.Cycles) {
		return commit.Cycle{}, fmt.Errorf("cycle %d out of range", i)
	}
	spec := d.file.Cycles[i]

	c := commit.Cycle{TestOnly: spec.TestOnly || d.opts.TestOnly}
	for j, r := range spec.Planes {
		req, err := d.request(r)
		if err != nil {
			return commit.Cycle{}, fmt.Errorf("cycle %d plane %d: %w", i, j, err)
		}
		c.Requests = append(c.Requests, req)
	}
	return c, nil
}

func (d *Device) request(r RequestSpec) (commit.Request, error) {
	var req commit.Request
	switch {
	case r.Layer != nil:
		req.Slot = *r.Layer
	case r.Sprite != nil:
		if *r.Sprite < 0 || *r.Sprite >= len(d.Sprites) {
			return req, fmt.Errorf("sprite %d: %w", *r.Sprite, kms.ErrIDOutOfRange)
		}
		req.Slot = d.Sprites[*r.Sprite].Slot()
	}
	if r.Buffer == "" {
		return req, nil
	}

	fb, ok := d.Buffers[r.Buffer]
	if !ok {
		return req, fmt.Errorf("unknown buffer %q", r.Buffer)
	}
	req.FB = fb

	src := RectSpec{W: fb.Width, H: fb.Height}
	if r.Src != nil {
		src = *r.Src
	}
	dst := RectSpec{W: src.W, H: src.H}
	if r.Dst != nil {
		dst = *r.Dst
	}
	req.Src = kms.FixedRectFromInts(src.X, src.Y, src.W, src.H)
	req.Dst = kms.Rect{X: dst.X, Y: dst.Y, W: dst.W, H: dst.H}
	req.Zpos = r.Zpos
	req.Alpha = r.Alpha
	return req, nil
}

// Run plays every cycle in order and hands each outcome to fn. Rejected
// planes do not stop the run; an error from fn or from the pipeline does.
func (d *Device) Run(ctx context.Context, fn func(Step) error) error {
	for i, spec := range d.file.Cycles {
		c, err := d.Cycle(i)
		if err != nil {
			return err
		}
		res, err := d.Pipeline.Commit(ctx, c)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", i, err)
		}
		if err := res.Err(); err != nil {
			slog.Warn("Cycle had rejected planes", "cycle", i, "name", spec.Name, "error", err)
		}
		if fn == nil {
			continue
		}
		if err := fn(Step{Index: i, Name: spec.Name, Cycle: c, Result: res}); err != nil {
			return err
		}
	}
	return nil
}
