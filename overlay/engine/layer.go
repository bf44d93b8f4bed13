package engine

import (
	"fmt"

	"github.com/valerio/go-overlay/overlay/bit"
	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/regs"
)

// blender format field codes for RGB buffers
var rgbCodes = map[format.Fourcc]uint32{
	format.RGB565:   0x5,
	format.ARGB1555: 0x6,
	format.RGBA5551: 0x7,
	format.BGR888:   0x8,
	format.XRGB8888: 0x9,
	format.ARGB8888: 0xA,
	format.RGB888:   0xB,
	format.ARGB4444: 0xC,
	format.RGBA4444: 0xD,
	format.BGRX8888: 0xE,
	format.BGRA8888: 0xF,
}

// yuvChannel is how a buffer read through the YUV channel is laid out.
type yuvChannel struct {
	layout uint32
	seq    uint32 // component order of packed layouts
}

var yuvChannels = map[format.Fourcc]yuvChannel{
	format.YUYV:   {layout: regs.IYUVPacked422, seq: 0x0},
	format.YVYU:   {layout: regs.IYUVPacked422, seq: 0x1},
	format.UYVY:   {layout: regs.IYUVPacked422, seq: 0x2},
	format.VYUY:   {layout: regs.IYUVPacked422, seq: 0x3},
	format.R8G8B8: {layout: regs.IYUVPlanar444},
}

// layerShadow mirrors what was programmed for a layer so the output can be
// composed in software.
type layerShadow struct {
	enabled bool
	fb      *kms.Framebuffer
	src     kms.FixedRect
	dst     kms.Rect
	zpos    int
	alpha   uint16
	scaled  bool
	format  format.Fourcc
}

func checkLayer(layer int) error {
	if layer < 0 || layer >= NumLayers {
		return fmt.Errorf("%w: layer %d", kms.ErrIDOutOfRange, layer)
	}
	return nil
}

// UpdateLayerCoord programs the output position and size of a layer.
func (e *Engine) UpdateLayerCoord(layer int, state *kms.PlaneState) error {
	if err := checkLayer(layer); err != nil {
		return err
	}

	e.regs.Write(regs.LayerSize(layer), packSize(state.Dst.W, state.Dst.H))
	e.regs.Write(regs.LayerCoord(layer), uint32(uint16(int16(state.Dst.Y)))<<16|uint32(uint16(int16(state.Dst.X))))

	e.shadowMu.Lock()
	e.shadow[layer].dst = state.Dst
	e.shadow[layer].src = state.Src
	e.shadowMu.Unlock()
	return nil
}

// UpdateLayerFormats programs the buffer format of a layer read straight from
// memory. The layer stops being fed by the scaler.
func (e *Engine) UpdateLayerFormats(layer int, state *kms.PlaneState) error {
	if err := checkLayer(layer); err != nil {
		return err
	}
	if state.FB == nil {
		return fmt.Errorf("%w: layer %d has no buffer", kms.ErrInvalidConfig, layer)
	}

	f := state.FB.Format
	code, rgb := rgbCodes[f]
	ch, yuv := yuvChannels[f]
	if !rgb && !yuv {
		return fmt.Errorf("%w: blender cannot read %s", kms.ErrInvalidConfig, f)
	}

	att0 := uint32(1<<regs.AttCtl0VideoEn | 1<<regs.AttCtl0YUVEn)
	val := uint32(0)
	if yuv {
		val = 1 << regs.AttCtl0YUVEn
		e.regs.Write(regs.IYUVCtl, ch.layout<<regs.IYUVCtlFormatLow|ch.seq<<regs.IYUVCtlSeqLow)
	}
	e.regs.Update(regs.LayerAttCtl0(layer), att0, val)
	e.regs.Update(regs.LayerAttCtl1(layer), bit.Mask(regs.AttCtl1FormatHigh, regs.AttCtl1FormatLow),
		code<<regs.AttCtl1FormatLow)

	e.shadowMu.Lock()
	e.shadow[layer].format = f
	e.shadow[layer].scaled = false
	e.shadowMu.Unlock()
	return nil
}

// UpdateLayerFrontend tells the blender that the layer is fed by the scaler
// with the given intermediate format.
func (e *Engine) UpdateLayerFrontend(layer int, out format.Fourcc) error {
	if err := checkLayer(layer); err != nil {
		return err
	}
	code, ok := rgbCodes[out]
	if !ok || (out != format.ARGB8888 && out != format.XRGB8888) {
		return fmt.Errorf("%w: %s is not an intermediate format", kms.ErrInvalidConfig, out)
	}

	e.regs.Update(regs.LayerAttCtl0(layer), 1<<regs.AttCtl0VideoEn|1<<regs.AttCtl0YUVEn, 1<<regs.AttCtl0VideoEn)
	e.regs.Update(regs.LayerAttCtl1(layer), bit.Mask(regs.AttCtl1FormatHigh, regs.AttCtl1FormatLow),
		code<<regs.AttCtl1FormatLow)

	e.shadowMu.Lock()
	e.shadow[layer].format = out
	e.shadow[layer].scaled = true
	e.shadow[layer].fb = nil
	e.shadowMu.Unlock()
	return nil
}

// UpdateLayerBuffer programs pitch and scanout address of a layer read
// straight from memory. The address points at the top left source pixel.
func (e *Engine) UpdateLayerBuffer(layer int, state *kms.PlaneState) error {
	if err := checkLayer(layer); err != nil {
		return err
	}
	fb := state.FB
	if fb == nil {
		return fmt.Errorf("%w: layer %d has no buffer", kms.ErrInvalidConfig, layer)
	}

	x, y := state.Src.X.Int(), state.Src.Y.Int()
	if _, yuv := yuvChannels[fb.Format]; yuv {
		// the YUV channel takes byte addresses, one per memory plane
		for i := 0; i < fb.Info().NumPlanes; i++ {
			e.regs.Write(regs.IYUVLineWidth(i), uint32(fb.Pitches[i]))
			e.regs.Write(regs.IYUVAddr(i), uint32(fb.PlaneAddr(i, x, y)))
		}
	} else {
		// line width and address are in bits
		e.regs.Write(regs.LayerLineWidth(layer), uint32(fb.Pitches[0])*8)
		addr := fb.PlaneAddr(0, x, y) << 3
		e.regs.Write(regs.LayerAddrLow(layer), uint32(addr))
		hiShift := uint8(layer * 8)
		e.regs.Update(regs.LayerAddrHigh, 0xFF<<hiShift, uint32(addr>>32)<<hiShift)
	}

	e.shadowMu.Lock()
	e.shadow[layer].fb = fb
	e.shadowMu.Unlock()
	return nil
}

// UpdateLayerZpos programs the priority of a layer. Layers drawn over
// something with reduced alpha are moved to the second blending pipe.
func (e *Engine) UpdateLayerZpos(layer int, state *kms.PlaneState) error {
	if err := checkLayer(layer); err != nil {
		return err
	}
	if state.Zpos < 0 || state.Zpos >= NumLayers {
		return fmt.Errorf("%w: zpos %d", kms.ErrInvalidConfig, state.Zpos)
	}

	pipe := uint32(0)
	if state.Zpos > 0 && state.Alpha != kms.AlphaOpaque {
		pipe = 1
	}
	mask := bit.Mask(regs.AttCtl0PrioHigh, regs.AttCtl0PrioLow) | 1<<regs.AttCtl0PipeSel
	val := uint32(state.Zpos)<<regs.AttCtl0PrioLow | pipe<<regs.AttCtl0PipeSel
	e.regs.Update(regs.LayerAttCtl0(layer), mask, val)

	e.shadowMu.Lock()
	e.shadow[layer].zpos = state.Zpos
	e.shadowMu.Unlock()
	return nil
}

// UpdateLayerAlpha programs the global alpha of a layer.
func (e *Engine) UpdateLayerAlpha(layer int, state *kms.PlaneState) error {
	if err := checkLayer(layer); err != nil {
		return err
	}

	en := uint32(0)
	if state.Alpha != kms.AlphaOpaque {
		en = 1
	}
	mask := bit.Mask(regs.AttCtl0AlphaHigh, regs.AttCtl0AlphaLow) | 1<<regs.AttCtl0GlobalAlphaEn
	val := uint32(state.Alpha>>8)<<regs.AttCtl0AlphaLow | en<<regs.AttCtl0GlobalAlphaEn
	e.regs.Update(regs.LayerAttCtl0(layer), mask, val)

	e.shadowMu.Lock()
	e.shadow[layer].alpha = state.Alpha
	e.shadowMu.Unlock()
	return nil
}

// LayerEnable switches a layer on or off in the mode control register.
func (e *Engine) LayerEnable(layer int, enable bool) error {
	if err := checkLayer(layer); err != nil {
		return err
	}

	b := uint32(1) << (regs.ModCtlLayerEnBase + uint8(layer))
	val := uint32(0)
	if enable {
		val = b
	}
	e.regs.Update(regs.ModCtl, b, val)

	e.shadowMu.Lock()
	e.shadow[layer].enabled = enable
	if !enable {
		e.shadow[layer].fb = nil
		e.shadow[layer].scaled = false
	}
	e.shadowMu.Unlock()
	return nil
}

// LayerEnabled reads back the enable bit of a layer.
func (e *Engine) LayerEnabled(layer int) bool {
	if checkLayer(layer) != nil {
		return false
	}
	return bit.IsSet(regs.ModCtlLayerEnBase+uint8(layer), e.regs.Read(regs.ModCtl))
}

// LayerStatus is a snapshot of what a layer currently shows.
type LayerStatus struct {
	Layer   int
	Enabled bool
	Scaled  bool
	Format  format.Fourcc
	Zpos    int
	Alpha   uint16
	Src     kms.FixedRect
	Dst     kms.Rect
	FB      int
}

// Layers returns the status of every layer.
func (e *Engine) Layers() []LayerStatus {
	e.shadowMu.Lock()
	defer e.shadowMu.Unlock()

	out := make([]LayerStatus, NumLayers)
	for i, s := range e.shadow {
		fbID := -1
		if s.fb != nil {
			fbID = s.fb.ID
		}
		out[i] = LayerStatus{
			Layer:   i,
			Enabled: s.enabled,
			Scaled:  s.scaled,
			Format:  s.format,
			Zpos:    s.zpos,
			Alpha:   s.alpha,
			Src:     s.src,
			Dst:     s.dst,
			FB:      fbID,
		}
	}
	return out
}
