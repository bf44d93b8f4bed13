package format

import "fmt"

// Fourcc is a little-endian four character pixel format code.
type Fourcc uint32

// RGB formats.
const (
	ARGB1555 Fourcc = 'A' | 'R'<<8 | '1'<<16 | '5'<<24
	ARGB4444 Fourcc = 'A' | 'R'<<8 | '1'<<16 | '2'<<24
	ARGB8888 Fourcc = 'A' | 'R'<<8 | '2'<<16 | '4'<<24
	BGRA8888 Fourcc = 'B' | 'A'<<8 | '2'<<16 | '4'<<24
	BGRX8888 Fourcc = 'B' | 'X'<<8 | '2'<<16 | '4'<<24
	BGR888   Fourcc = 'B' | 'G'<<8 | '2'<<16 | '4'<<24
	RGB565   Fourcc = 'R' | 'G'<<8 | '1'<<16 | '6'<<24
	RGB888   Fourcc = 'R' | 'G'<<8 | '2'<<16 | '4'<<24
	RGBA4444 Fourcc = 'R' | 'A'<<8 | '1'<<16 | '2'<<24
	RGBA5551 Fourcc = 'R' | 'A'<<8 | '1'<<16 | '5'<<24
	XRGB8888 Fourcc = 'X' | 'R'<<8 | '2'<<16 | '4'<<24
	// R8G8B8 keeps each colour component in its own memory plane.
	R8G8B8 Fourcc = 'R' | '8'<<8 | '8'<<16 | '8'<<24
)

// Packed YUV formats.
const (
	YUYV Fourcc = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	YVYU Fourcc = 'Y' | 'V'<<8 | 'Y'<<16 | 'U'<<24
	UYVY Fourcc = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24
	VYUY Fourcc = 'V' | 'Y'<<8 | 'U'<<16 | 'Y'<<24
)

// Semi-planar and planar YUV formats.
const (
	NV12   Fourcc = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
	NV21   Fourcc = 'N' | 'V'<<8 | '2'<<16 | '1'<<24
	NV16   Fourcc = 'N' | 'V'<<8 | '1'<<16 | '6'<<24
	NV61   Fourcc = 'N' | 'V'<<8 | '6'<<16 | '1'<<24
	YUV411 Fourcc = 'Y' | 'U'<<8 | '1'<<16 | '1'<<24
	YUV420 Fourcc = 'Y' | 'U'<<8 | '1'<<16 | '2'<<24
	YUV422 Fourcc = 'Y' | 'U'<<8 | '1'<<16 | '6'<<24
	YUV444 Fourcc = 'Y' | 'U'<<8 | '2'<<16 | '4'<<24
	YVU411 Fourcc = 'Y' | 'V'<<8 | '1'<<16 | '1'<<24
	YVU420 Fourcc = 'Y' | 'V'<<8 | '1'<<16 | '2'<<24
	YVU422 Fourcc = 'Y' | 'V'<<8 | '1'<<16 | '6'<<24
	YVU444 Fourcc = 'Y' | 'V'<<8 | '2'<<16 | '4'<<24
)

func (f Fourcc) String() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return fmt.Sprintf("0x%08X", uint32(f))
		}
	}
	return string(b)
}

// Parse converts a four character code such as "NV12" into a Fourcc.
func Parse(s string) (Fourcc, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("invalid fourcc %q: want 4 characters", s)
	}
	f := Fourcc(s[0]) | Fourcc(s[1])<<8 | Fourcc(s[2])<<16 | Fourcc(s[3])<<24
	if _, ok := Lookup(f); !ok {
		return 0, fmt.Errorf("unknown fourcc %q", s)
	}
	return f, nil
}

// Modifier describes the memory layout of a buffer.
type Modifier uint64

const (
	ModLinear Modifier = 0
	// ModTiled is the 32x32 tiled layout emitted by the video decoder.
	ModTiled Modifier = 0x09<<56 | 1
	// ModInvalid terminates modifier lists.
	ModInvalid Modifier = 0x00FFFFFFFFFFFFFF
)

func (m Modifier) String() string {
	switch m {
	case ModLinear:
		return "linear"
	case ModTiled:
		return "tiled"
	case ModInvalid:
		return "invalid"
	}
	return fmt.Sprintf("0x%016X", uint64(m))
}

// ParseModifier is the inverse of Modifier.String for the named modifiers.
// An empty string means linear.
func ParseModifier(s string) (Modifier, error) {
	switch s {
	case "", "linear":
		return ModLinear, nil
	case "tiled":
		return ModTiled, nil
	}
	return ModInvalid, fmt.Errorf("unknown modifier %q", s)
}
