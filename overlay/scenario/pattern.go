package scenario

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
)

// Pattern names a generated buffer content.
type Pattern string

const (
	Checkerboard Pattern = "checkerboard"
	Gradient     Pattern = "gradient"
	Stripes      Pattern = "stripes"
	Solid        Pattern = "solid"
)

const (
	checkerboardTileSize = 16
	stripeWidth          = 8
)

// Patterns lists every pattern in display order.
var Patterns = []Pattern{Checkerboard, Gradient, Stripes, Solid}

func (p Pattern) valid() bool {
	for _, known := range Patterns {
		if p == known {
			return true
		}
	}
	return false
}

// Next returns the pattern after p, wrapping around.
func (p Pattern) Next() Pattern {
	for i, known := range Patterns {
		if known == p {
			return Patterns[(i+1)%len(Patterns)]
		}
	}
	return Patterns[0]
}

// Render draws the pattern at the given size. c is the ARGB color used by
// the solid and two-tone patterns.
func (p Pattern) Render(w, h int, c uint32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fg := argb(c)
	bg := color.NRGBA{R: fg.R / 4, G: fg.G / 4, B: fg.B / 4, A: fg.A}

	switch p {
	case Solid:
		xdraw.Draw(img, img.Bounds(), image.NewUniform(fg), image.Point{}, xdraw.Src)
	case Gradient:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetNRGBA(x, y, color.NRGBA{
					R: uint8(x * 0xFF / max(w-1, 1)),
					G: uint8(y * 0xFF / max(h-1, 1)),
					B: fg.B,
					A: fg.A,
				})
			}
		}
	case Stripes:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if (x/stripeWidth)%2 == 0 {
					img.SetNRGBA(x, y, fg)
				} else {
					img.SetNRGBA(x, y, bg)
				}
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if ((x/checkerboardTileSize)+(y/checkerboardTileSize))%2 == 0 {
					img.SetNRGBA(x, y, fg)
				} else {
					img.SetNRGBA(x, y, bg)
				}
			}
		}
	}
	return img
}

func argb(c uint32) color.NRGBA {
	return color.NRGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: uint8(c >> 24)}
}

// Fill attaches pattern content to fb in a form matching its format: YUV
// buffers get a YCbCr image with the format's chroma subsampling, RGB
// buffers without alpha are made opaque.
func Fill(fb *kms.Framebuffer, p Pattern, c uint32) error {
	info := fb.Info()
	src := p.Render(fb.Width, fb.Height, c)

	if !info.IsYUV {
		if !info.HasAlpha {
			for i := 3; i < len(src.Pix); i += 4 {
				src.Pix[i] = 0xFF
			}
		}
		fb.Image = src
		return nil
	}

	ratio, err := subsampleRatio(info)
	if err != nil {
		return fmt.Errorf("framebuffer %d: %w", fb.ID, err)
	}
	fb.Image = toYCbCr(src, ratio)
	return nil
}

func subsampleRatio(info format.Info) (image.YCbCrSubsampleRatio, error) {
	switch {
	case info.Hsub == 1 && info.Vsub == 1:
		return image.YCbCrSubsampleRatio444, nil
	case info.Hsub == 2 && info.Vsub == 1:
		return image.YCbCrSubsampleRatio422, nil
	case info.Hsub == 2 && info.Vsub == 2:
		return image.YCbCrSubsampleRatio420, nil
	case info.Hsub == 4 && info.Vsub == 1:
		return image.YCbCrSubsampleRatio411, nil
	}
	return 0, fmt.Errorf("no YCbCr layout for %s", info.Format)
}

// toYCbCr converts src. Each subsampled chroma sample keeps the value of
// the last pixel of its block.
func toYCbCr(src *image.NRGBA, ratio image.YCbCrSubsampleRatio) *image.YCbCr {
	b := src.Bounds()
	dst := image.NewYCbCr(b, ratio)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			yy, cb, cr := color.RGBToYCbCr(c.R, c.G, c.B)
			dst.Y[dst.YOffset(x, y)] = yy
			ci := dst.COffset(x, y)
			dst.Cb[ci] = cb
			dst.Cr[ci] = cr
		}
	}
	return dst
}
