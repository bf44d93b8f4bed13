package kms

import (
	"fmt"
	"image"

	"github.com/valerio/go-overlay/overlay/format"
)

// Framebuffer is a scanout buffer handed to a plane. It is shared by
// reference between plane states and never mutated once created.
type Framebuffer struct {
	ID       int
	Format   format.Fourcc
	Modifier format.Modifier
	Width    int
	Height   int
	Pitches  [3]int
	Offsets  [3]int
	Addr     uint64 // bus address of the backing memory

	// Image holds the pixel content for software composition. It may be nil.
	Image image.Image
}

// NewFramebuffer lays out a tightly packed buffer of the given format at addr.
func NewFramebuffer(id int, f format.Fourcc, mod format.Modifier, width, height int, addr uint64) (*Framebuffer, error) {
	info, ok := format.Lookup(f)
	if !ok {
		return nil, fmt.Errorf("framebuffer %d: unknown format %s", id, f)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("framebuffer %d: invalid size %dx%d", id, width, height)
	}

	fb := &Framebuffer{
		ID:       id,
		Format:   f,
		Modifier: mod,
		Width:    width,
		Height:   height,
		Addr:     addr,
	}

	offset := 0
	for i := 0; i < info.NumPlanes; i++ {
		w, h := width, height
		if i > 0 {
			w = (width + info.Hsub - 1) / info.Hsub
			h = (height + info.Vsub - 1) / info.Vsub
		}
		fb.Pitches[i] = w * info.Cpp[i]
		fb.Offsets[i] = offset
		offset += fb.Pitches[i] * h
	}

	return fb, nil
}

// Info returns the layout description of the buffer format.
func (fb *Framebuffer) Info() format.Info {
	info, _ := format.Lookup(fb.Format)
	return info
}

// PlaneAddr returns the bus address of pixel (x, y) in the given memory plane.
// Chroma planes are addressed in subsampled coordinates.
func (fb *Framebuffer) PlaneAddr(plane, x, y int) uint64 {
	info := fb.Info()
	if plane > 0 {
		x /= info.Hsub
		y /= info.Vsub
	}
	return fb.Addr + uint64(fb.Offsets[plane]) + uint64(y*fb.Pitches[plane]) + uint64(x*info.Cpp[plane])
}
