package format

// Info describes the memory layout of a pixel format.
type Info struct {
	Format    Fourcc
	NumPlanes int
	Cpp       [3]int // bytes per pixel for each plane
	Hsub      int    // horizontal chroma subsampling
	Vsub      int    // vertical chroma subsampling
	HasAlpha  bool
	IsYUV     bool
}

var infos = map[Fourcc]Info{
	ARGB1555: {Format: ARGB1555, NumPlanes: 1, Cpp: [3]int{2}, Hsub: 1, Vsub: 1, HasAlpha: true},
	ARGB4444: {Format: ARGB4444, NumPlanes: 1, Cpp: [3]int{2}, Hsub: 1, Vsub: 1, HasAlpha: true},
	ARGB8888: {Format: ARGB8888, NumPlanes: 1, Cpp: [3]int{4}, Hsub: 1, Vsub: 1, HasAlpha: true},
	BGRA8888: {Format: BGRA8888, NumPlanes: 1, Cpp: [3]int{4}, Hsub: 1, Vsub: 1, HasAlpha: true},
	BGRX8888: {Format: BGRX8888, NumPlanes: 1, Cpp: [3]int{4}, Hsub: 1, Vsub: 1},
	BGR888:   {Format: BGR888, NumPlanes: 1, Cpp: [3]int{3}, Hsub: 1, Vsub: 1},
	RGB565:   {Format: RGB565, NumPlanes: 1, Cpp: [3]int{2}, Hsub: 1, Vsub: 1},
	RGB888:   {Format: RGB888, NumPlanes: 1, Cpp: [3]int{3}, Hsub: 1, Vsub: 1},
	RGBA4444: {Format: RGBA4444, NumPlanes: 1, Cpp: [3]int{2}, Hsub: 1, Vsub: 1, HasAlpha: true},
	RGBA5551: {Format: RGBA5551, NumPlanes: 1, Cpp: [3]int{2}, Hsub: 1, Vsub: 1, HasAlpha: true},
	XRGB8888: {Format: XRGB8888, NumPlanes: 1, Cpp: [3]int{4}, Hsub: 1, Vsub: 1},
	R8G8B8:   {Format: R8G8B8, NumPlanes: 3, Cpp: [3]int{1, 1, 1}, Hsub: 1, Vsub: 1},

	YUYV: {Format: YUYV, NumPlanes: 1, Cpp: [3]int{2}, Hsub: 2, Vsub: 1, IsYUV: true},
	YVYU: {Format: YVYU, NumPlanes: 1, Cpp: [3]int{2}, Hsub: 2, Vsub: 1, IsYUV: true},
	UYVY: {Format: UYVY, NumPlanes: 1, Cpp: [3]int{2}, Hsub: 2, Vsub: 1, IsYUV: true},
	VYUY: {Format: VYUY, NumPlanes: 1, Cpp: [3]int{2}, Hsub: 2, Vsub: 1, IsYUV: true},

	NV12: {Format: NV12, NumPlanes: 2, Cpp: [3]int{1, 2}, Hsub: 2, Vsub: 2, IsYUV: true},
	NV21: {Format: NV21, NumPlanes: 2, Cpp: [3]int{1, 2}, Hsub: 2, Vsub: 2, IsYUV: true},
	NV16: {Format: NV16, NumPlanes: 2, Cpp: [3]int{1, 2}, Hsub: 2, Vsub: 1, IsYUV: true},
	NV61: {Format: NV61, NumPlanes: 2, Cpp: [3]int{1, 2}, Hsub: 2, Vsub: 1, IsYUV: true},

	YUV411: {Format: YUV411, NumPlanes: 3, Cpp: [3]int{1, 1, 1}, Hsub: 4, Vsub: 1, IsYUV: true},
	YUV420: {Format: YUV420, NumPlanes: 3, Cpp: [3]int{1, 1, 1}, Hsub: 2, Vsub: 2, IsYUV: true},
	YUV422: {Format: YUV422, NumPlanes: 3, Cpp: [3]int{1, 1, 1}, Hsub: 2, Vsub: 1, IsYUV: true},
	YUV444: {Format: YUV444, NumPlanes: 3, Cpp: [3]int{1, 1, 1}, Hsub: 1, Vsub: 1, IsYUV: true},
	YVU411: {Format: YVU411, NumPlanes: 3, Cpp: [3]int{1, 1, 1}, Hsub: 4, Vsub: 1, IsYUV: true},
	YVU420: {Format: YVU420, NumPlanes: 3, Cpp: [3]int{1, 1, 1}, Hsub: 2, Vsub: 2, IsYUV: true},
	YVU422: {Format: YVU422, NumPlanes: 3, Cpp: [3]int{1, 1, 1}, Hsub: 2, Vsub: 1, IsYUV: true},
	YVU444: {Format: YVU444, NumPlanes: 3, Cpp: [3]int{1, 1, 1}, Hsub: 1, Vsub: 1, IsYUV: true},
}

// Lookup returns the layout description for a format.
func Lookup(f Fourcc) (Info, bool) {
	info, ok := infos[f]
	return info, ok
}

// NeedsConversion reports whether a plane that may use the scaler routes
// this format through it: YUV data or more than one memory plane.
func (i Info) NeedsConversion() bool {
	return i.IsYUV || i.NumPlanes > 1
}

// IsMultiPlanar reports whether the format spreads over more than one memory plane.
func (i Info) IsMultiPlanar() bool {
	return i.NumPlanes > 1
}
