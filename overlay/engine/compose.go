package engine

import (
	"image"
	"image/color"
	"sort"

	xdraw "golang.org/x/image/draw"

	"github.com/valerio/go-overlay/overlay/kms"
)

// scaledSource is implemented by scalers that can hand back their output.
type scaledSource interface {
	Output() image.Image
}

// Compose blends the enabled layers back to front into a new output image.
// Layers fed by the scaler take the scaler output; the others read their
// source rectangle straight from the buffer image.
func (e *Engine) Compose() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, e.cfg.Width, e.cfg.Height))
	bg := e.cfg.BackColor
	xdraw.Draw(out, out.Bounds(), image.NewUniform(color.RGBA{
		R: uint8(bg >> 16), G: uint8(bg >> 8), B: uint8(bg), A: 0xFF,
	}), image.Point{}, xdraw.Src)

	e.shadowMu.Lock()
	stack := make([]layerShadow, 0, NumLayers)
	for _, s := range e.shadow {
		if s.enabled {
			stack = append(stack, s)
		}
	}
	e.shadowMu.Unlock()

	idx := make([]int, len(stack))
	for i := range idx {
		idx[i] = i
	}
	// equal zpos falls back to layer order
	sort.SliceStable(idx, func(a, b int) bool {
		return stack[idx[a]].zpos < stack[idx[b]].zpos
	})

	for _, i := range idx {
		e.composeLayer(out, stack[i])
	}
	return out
}

func (e *Engine) composeLayer(out *image.RGBA, s layerShadow) {
	var src image.Image
	var sp image.Point

	if s.scaled {
		if ss, ok := e.scaler.(scaledSource); ok {
			src = ss.Output()
		}
	} else if s.fb != nil && s.fb.Image != nil {
		src = s.fb.Image
		sp = s.fb.Image.Bounds().Min.Add(image.Pt(s.src.X.Int(), s.src.Y.Int()))
	}
	if src == nil {
		return
	}
	if s.scaled {
		sp = src.Bounds().Min
	}

	r := image.Rect(s.dst.X, s.dst.Y, s.dst.X+s.dst.W, s.dst.Y+s.dst.H)
	var mask image.Image
	if s.alpha != kms.AlphaOpaque {
		mask = image.NewUniform(color.Alpha{A: uint8(s.alpha >> 8)})
	}
	xdraw.DrawMask(out, r, src, sp, mask, image.Point{}, xdraw.Over)
}
