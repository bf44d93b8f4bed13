package format

import "slices"

// Kind selects which format set a plane advertises.
type Kind int

const (
	// DirectOnly planes are fed straight from memory and take RGB only.
	DirectOnly Kind = iota
	// YUVCapable planes are fed straight from memory and also take packed YUV.
	YUVCapable
	// ScalerCapable planes may be routed through the scaler.
	ScalerCapable
)

func (k Kind) String() string {
	switch k {
	case DirectOnly:
		return "rgb"
	case YUVCapable:
		return "yuv"
	case ScalerCapable:
		return "scaler"
	}
	return "unknown"
}

// The tables keep the order in which planes register their formats.

var rgbFormats = []Fourcc{
	ARGB8888,
	BGRA8888,
	XRGB8888,
	BGRX8888,
	RGB888,
	BGR888,
	ARGB1555,
	RGBA5551,
	ARGB4444,
	RGBA4444,
	RGB565,
}

// formats read through the blender's YUV channel
var yuvChannelFormats = []Fourcc{
	UYVY,
	VYUY,
	YUYV,
	YVYU,
	R8G8B8,
}

var planarYUVFormats = []Fourcc{
	NV12,
	NV16,
	NV21,
	NV61,
	YUV411,
	YUV420,
	YUV422,
	YUV444,
	YVU411,
	YVU420,
	YVU422,
	YVU444,
}

var (
	yuvFormats    = slices.Concat(rgbFormats, yuvChannelFormats)
	scalerFormats = slices.Concat(rgbFormats, yuvChannelFormats, planarYUVFormats)
)

var scalerModifiers = []Modifier{
	ModLinear,
	ModTiled,
	ModInvalid,
}

// Capability is the format set a plane registers with the host. Only the
// ScalerCapable kind carries a modifier list, terminated by ModInvalid.
type Capability struct {
	Kind      Kind
	Formats   []Fourcc
	Modifiers []Modifier
}

// For returns the capability of the given kind. The returned slices are
// copies and may be modified by the caller.
func For(kind Kind) Capability {
	switch kind {
	case ScalerCapable:
		return Capability{
			Kind:      kind,
			Formats:   slices.Clone(scalerFormats),
			Modifiers: slices.Clone(scalerModifiers),
		}
	case YUVCapable:
		return Capability{Kind: kind, Formats: slices.Clone(yuvFormats)}
	default:
		return Capability{Kind: DirectOnly, Formats: slices.Clone(rgbFormats)}
	}
}

// Has reports whether f is advertised by this capability.
func (c Capability) Has(f Fourcc) bool {
	return slices.Contains(c.Formats, f)
}

// directTable returns the formats the blender reads from memory without
// going through the scaler.
func directTable(kind Kind) []Fourcc {
	if kind == DirectOnly {
		return rgbFormats
	}
	return yuvFormats
}

// IsDirect reports whether a plane of the given kind can scan out a linear
// buffer of format f without help from the scaler.
func IsDirect(kind Kind, f Fourcc, mod Modifier) bool {
	return mod == ModLinear && slices.Contains(directTable(kind), f)
}
