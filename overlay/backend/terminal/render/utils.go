package render

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// HalfBlock is the glyph that packs two vertically stacked pixels into one
// terminal cell: the foreground paints the top pixel, the background the
// bottom one.
const HalfBlock = '▀'

// FitCells resamples frame to fill cols x rows terminal cells, two pixel
// rows per cell, keeping the aspect ratio. The returned image is what the
// cells show; its height is even.
func FitCells(frame image.Image, cols, rows int) *image.RGBA {
	if cols <= 0 || rows <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	b := frame.Bounds()
	w, h := cols, rows*2
	if b.Dx() > 0 && b.Dy() > 0 {
		// fit width first, shrink if that overflows the rows
		if fh := b.Dy() * w / b.Dx(); fh <= h {
			h = max(fh, 2)
		} else {
			w = max(b.Dx()*h/b.Dy(), 1)
		}
	}
	h += h % 2

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), frame, b, xdraw.Src, nil)
	return out
}

// CellColors returns the top and bottom pixel colors of the cell at col,
// row of a fitted image.
func CellColors(img *image.RGBA, col, row int) (top, bottom color.RGBA) {
	top = img.RGBAAt(col, row*2)
	bottom = img.RGBAAt(col, row*2+1)
	return top, bottom
}
