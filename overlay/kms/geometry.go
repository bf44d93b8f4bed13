package kms

import "fmt"

// Fixed16 is an unsigned 16.16 fixed point value.
type Fixed16 uint32

// FixedOne is 1.0 in 16.16 fixed point.
const FixedOne Fixed16 = 1 << 16

// ToFixed converts whole pixels to 16.16 fixed point.
func ToFixed(v int) Fixed16 {
	return Fixed16(uint32(v) << 16)
}

// Int returns the integer part.
func (f Fixed16) Int() int {
	return int(f >> 16)
}

// Frac returns the fractional part in 1/65536 units.
func (f Fixed16) Frac() uint32 {
	return uint32(f) & 0xFFFF
}

func (f Fixed16) String() string {
	if f.Frac() == 0 {
		return fmt.Sprintf("%d", f.Int())
	}
	return fmt.Sprintf("%d+%d/65536", f.Int(), f.Frac())
}

// Rect is a rectangle in whole output pixels.
type Rect struct {
	X, Y int
	W, H int
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y)
}

// FixedRect is a rectangle in 16.16 fixed point buffer coordinates.
type FixedRect struct {
	X, Y Fixed16
	W, H Fixed16
}

// FixedRectFromInts builds a source rectangle from whole pixel values.
func FixedRectFromInts(x, y, w, h int) FixedRect {
	return FixedRect{X: ToFixed(x), Y: ToFixed(y), W: ToFixed(w), H: ToFixed(h)}
}

// Whole returns the rectangle truncated to whole pixels.
func (r FixedRect) Whole() Rect {
	return Rect{X: r.X.Int(), Y: r.Y.Int(), W: r.W.Int(), H: r.H.Int()}
}

func (r FixedRect) String() string {
	return fmt.Sprintf("%sx%s+%s+%s", r.W, r.H, r.X, r.Y)
}

// IsScaled reports whether showing src at dst requires scaling. The test is
// exact: any difference between dst<<16 and src, including a fractional
// source size, counts.
func IsScaled(src FixedRect, dst Rect) bool {
	return uint64(dst.W)<<16 != uint64(src.W) || uint64(dst.H)<<16 != uint64(src.H)
}
