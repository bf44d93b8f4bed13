package scaler

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"slices"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/valerio/go-overlay/overlay/bit"
	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/regs"
)

var errNotInitialized = errors.New("scaler not initialized")

// input formats the unit can read, linear layout
var inputFormats = []format.Fourcc{
	format.ARGB8888,
	format.BGRA8888,
	format.XRGB8888,
	format.BGRX8888,
	format.RGB888,
	format.BGR888,
	format.ARGB1555,
	format.RGBA5551,
	format.ARGB4444,
	format.RGBA4444,
	format.RGB565,
	format.UYVY,
	format.VYUY,
	format.YUYV,
	format.YVYU,
	format.R8G8B8,
	format.NV12,
	format.NV16,
	format.NV21,
	format.NV61,
	format.YUV411,
	format.YUV420,
	format.YUV422,
	format.YUV444,
	format.YVU411,
	format.YVU420,
	format.YVU422,
	format.YVU444,
}

// input formats that may also come in the tiled layout
var tiledFormats = []format.Fourcc{
	format.NV12,
	format.NV16,
	format.YUV411,
	format.YUV420,
	format.YUV422,
}

// register codes for the input and output format fields
var formatCodes = map[format.Fourcc]uint32{
	format.ARGB8888: 0x0,
	format.XRGB8888: 0x0,
	format.BGRX8888: 0x1,
	format.YUYV:     0x4,
	format.YVYU:     0x5,
	format.UYVY:     0x6,
	format.VYUY:     0x7,
	format.NV12:     0x8,
	format.NV21:     0x9,
	format.NV16:     0xA,
	format.NV61:     0xB,
	format.YUV420:   0xC,
	format.YVU420:   0xD,
	format.YUV422:   0xE,
	format.YVU422:   0xF,
	format.YUV411:   0x10,
	format.YVU411:   0x11,
	format.YUV444:   0x12,
	format.YVU444:   0x13,
	format.BGRA8888: 0x14,
	format.RGB888:   0x15,
	format.BGR888:   0x16,
	format.ARGB1555: 0x17,
	format.RGBA5551: 0x18,
	format.ARGB4444: 0x19,
	format.RGBA4444: 0x1A,
	format.RGB565:   0x1B,
	format.R8G8B8:   0x1C,
}

// Software is a scaler backed by a register file and x/image resampling.
// Enable renders the scaled intermediate image that the blender composes.
type Software struct {
	regs regs.Map

	mu          sync.Mutex
	initialized bool
	enabled     bool
	src         kms.FixedRect
	dst         kms.Rect
	fb          *kms.Framebuffer
	out         format.Fourcc
	output      *image.RGBA
	inits       int
}

// NewSoftware creates a scaler driving the given register file.
func NewSoftware(r regs.Map) *Software {
	return &Software{regs: r}
}

func (s *Software) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regs.Write(regs.ScalerEn, 0)
	s.regs.Write(regs.ScalerFrmCtl, 0)
	s.regs.Update(regs.ScalerEn, 1<<regs.ScalerEnEnable, 1<<regs.ScalerEnEnable)

	s.initialized = true
	s.enabled = false
	s.output = nil
	s.inits++
	slog.Debug("Scaler initialized", "count", s.inits)
	return nil
}

func (s *Software) UpdateCoordinates(state *kms.PlaneState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	if state.Dst.W <= 0 || state.Dst.H <= 0 {
		return fmt.Errorf("%w: empty destination %s", kms.ErrInvalidConfig, state.Dst)
	}

	in := state.Src.Whole()
	s.regs.Write(regs.ScalerInSize, packSize(in.W, in.H))
	s.regs.Write(regs.ScalerOutSize, packSize(state.Dst.W, state.Dst.H))
	// 16.16 ratio of input to output
	s.regs.Write(regs.ScalerHorzFact, uint32(uint64(state.Src.W)/uint64(state.Dst.W)))
	s.regs.Write(regs.ScalerVertFact, uint32(uint64(state.Src.H)/uint64(state.Dst.H)))

	s.src = state.Src
	s.dst = state.Dst
	return nil
}

func (s *Software) UpdateBuffer(state *kms.PlaneState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	fb := state.FB
	if fb == nil {
		return fmt.Errorf("%w: no buffer attached", kms.ErrInvalidConfig)
	}

	info := fb.Info()
	x, y := state.Src.X.Int(), state.Src.Y.Int()
	addrRegs := [3]uint32{regs.ScalerBufAddr0, regs.ScalerBufAddr1, regs.ScalerBufAddr2}
	strideRegs := [3]uint32{regs.ScalerLineStr0, regs.ScalerLineStr1, regs.ScalerLineStr2}
	for i := 0; i < info.NumPlanes; i++ {
		s.regs.Write(addrRegs[i], uint32(fb.PlaneAddr(i, x, y)))
		s.regs.Write(strideRegs[i], uint32(fb.Pitches[i]))
	}

	s.fb = fb
	return nil
}

func (s *Software) SetOutputFormat(state *kms.PlaneState, out format.Fourcc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	if state.FB == nil {
		return fmt.Errorf("%w: no buffer attached", kms.ErrInvalidConfig)
	}
	in, ok := formatCodes[state.FB.Format]
	if !ok {
		return fmt.Errorf("%w: scaler cannot read %s", kms.ErrInvalidConfig, state.FB.Format)
	}
	if out != format.ARGB8888 && out != format.XRGB8888 {
		return fmt.Errorf("%w: scaler cannot emit %s", kms.ErrInvalidConfig, out)
	}

	s.regs.Write(regs.ScalerInFmt, in)
	s.regs.Write(regs.ScalerOutFmt, formatCodes[out])
	s.out = out
	return nil
}

func (s *Software) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		slog.Warn("Scaler enabled before init")
		return
	}

	s.regs.Update(regs.ScalerFrmCtl, 1<<regs.ScalerFrmCtlStart, 1<<regs.ScalerFrmCtlStart)
	s.enabled = true
	s.render()
}

func (s *Software) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regs.Write(regs.ScalerFrmCtl, 0)
	s.regs.Write(regs.ScalerEn, 0)
	s.initialized = false
	s.enabled = false
	s.fb = nil
	s.output = nil
	slog.Debug("Scaler torn down")
}

func (s *Software) FormatModSupported(f format.Fourcc, mod format.Modifier) bool {
	switch mod {
	case format.ModLinear:
		return slices.Contains(inputFormats, f)
	case format.ModTiled:
		return slices.Contains(tiledFormats, f)
	}
	return false
}

// Active reports whether the unit is initialized and running.
func (s *Software) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized && s.enabled
}

// Inits returns how many times the unit was brought out of reset.
func (s *Software) Inits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits
}

// Output returns the last scaled frame, or nil when the unit is idle.
func (s *Software) Output() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.output == nil {
		return nil
	}
	return s.output
}

// render resamples the source rectangle of the current buffer to the
// destination size. Called with s.mu held.
func (s *Software) render() {
	s.output = image.NewRGBA(image.Rect(0, 0, s.dst.W, s.dst.H))
	if s.fb == nil || s.fb.Image == nil {
		return
	}

	src := s.src.Whole()
	srcRect := image.Rect(src.X, src.Y, src.X+src.W, src.Y+src.H).Add(s.fb.Image.Bounds().Min)
	xdraw.ApproxBiLinear.Scale(s.output, s.output.Bounds(), s.fb.Image, srcRect, xdraw.Src, nil)

	if s.out == format.XRGB8888 {
		forceOpaque(s.output)
	}
}

func forceOpaque(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.A == 0xFF {
				continue
			}
			// un-premultiply onto opaque
			if c.A != 0 {
				c.R = uint8(uint32(c.R) * 0xFF / uint32(c.A))
				c.G = uint8(uint32(c.G) * 0xFF / uint32(c.A))
				c.B = uint8(uint32(c.B) * 0xFF / uint32(c.A))
			}
			img.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
		}
	}
}

func packSize(w, h int) uint32 {
	return bit.InsertBits(uint32(w-1)&0x1FFF, 28, 16, uint32(h-1))
}
