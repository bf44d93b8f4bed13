package kms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-overlay/overlay/format"
)

func TestIsScaled(t *testing.T) {
	tests := []struct {
		name     string
		src      FixedRect
		dst      Rect
		expected bool
	}{
		{"identity", FixedRectFromInts(0, 0, 1920, 1080), Rect{W: 1920, H: 1080}, false},
		{"upscale", FixedRectFromInts(0, 0, 1280, 720), Rect{W: 1920, H: 1080}, true},
		{"width only", FixedRectFromInts(0, 0, 100, 100), Rect{W: 101, H: 100}, true},
		{"height only", FixedRectFromInts(0, 0, 100, 100), Rect{W: 100, H: 99}, true},
		{"fractional source", FixedRect{W: ToFixed(100) + 1, H: ToFixed(100)}, Rect{W: 100, H: 100}, true},
		{"offset does not matter", FixedRectFromInts(17, 3, 64, 64), Rect{X: 500, Y: 9, W: 64, H: 64}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsScaled(tt.src, tt.dst))
		})
	}
}

func TestFixed16(t *testing.T) {
	f := ToFixed(3) + FixedOne/2
	assert.Equal(t, 3, f.Int())
	assert.Equal(t, uint32(0x8000), f.Frac())
	assert.Equal(t, "3+32768/65536", f.String())
	assert.Equal(t, "3", ToFixed(3).String())
}

func TestFramebufferLayout(t *testing.T) {
	fb, err := NewFramebuffer(1, format.NV12, format.ModLinear, 64, 32, 0x4000_0000)
	require.NoError(t, err)
	assert.Equal(t, [3]int{64, 64, 0}, fb.Pitches)
	assert.Equal(t, [3]int{0, 64 * 32, 0}, fb.Offsets)

	// chroma addressing is subsampled
	assert.Equal(t, uint64(0x4000_0000+64*32+64*2+4*2), fb.PlaneAddr(1, 8, 4))
	assert.Equal(t, uint64(0x4000_0000+64*4+8), fb.PlaneAddr(0, 8, 4))

	_, err = NewFramebuffer(2, format.Fourcc(0), format.ModLinear, 64, 32, 0)
	assert.Error(t, err)
	_, err = NewFramebuffer(3, format.XRGB8888, format.ModLinear, 0, 32, 0)
	assert.Error(t, err)
}

func TestStateDuplicateDoesNotAlias(t *testing.T) {
	pool := NewStatePool(4)
	orig, err := pool.New()
	require.NoError(t, err)
	orig.UsesScaler = true
	orig.Zpos = 2

	dup, err := orig.Duplicate()
	require.NoError(t, err)
	assert.True(t, dup.UsesScaler, "duplicate inherits the derived flag")

	dup.UsesScaler = false
	dup.Zpos = 0
	dup.Destroy()

	assert.True(t, orig.UsesScaler)
	assert.Equal(t, 2, orig.Zpos)
	assert.Equal(t, 1, pool.Live())
}

func TestStatePoolExhaustion(t *testing.T) {
	pool := NewStatePool(2)
	a, err := pool.New()
	require.NoError(t, err)
	b, err := a.Duplicate()
	require.NoError(t, err)

	c, err := b.Duplicate()
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Nil(t, c)
	assert.Equal(t, 2, pool.Live())

	b.Destroy()
	b.Destroy()
	assert.Equal(t, 1, pool.Live(), "double destroy is a no-op")

	c, err = a.Duplicate()
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestStateDefaults(t *testing.T) {
	pool := NewStatePool(1)
	s, err := pool.New()
	require.NoError(t, err)
	assert.Equal(t, AlphaOpaque, s.Alpha)
	assert.False(t, s.HasFB())
	assert.False(t, s.UsesScaler)
}
