package scaler

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/regs"
)

func newState(t *testing.T, f format.Fourcc, srcW, srcH, dstW, dstH int, img image.Image) *kms.PlaneState {
	t.Helper()
	fb, err := kms.NewFramebuffer(1, f, format.ModLinear, srcW, srcH, 0x1000_0000)
	require.NoError(t, err)
	fb.Image = img
	return &kms.PlaneState{
		Src:   kms.FixedRectFromInts(0, 0, srcW, srcH),
		Dst:   kms.Rect{W: dstW, H: dstH},
		FB:    fb,
		Alpha: kms.AlphaOpaque,
	}
}

func TestSoftwareRequiresInit(t *testing.T) {
	s := NewSoftware(regs.NewMemory("scaler"))
	state := newState(t, format.NV12, 16, 16, 32, 32, nil)

	assert.Error(t, s.UpdateCoordinates(state))
	assert.Error(t, s.UpdateBuffer(state))
	assert.Error(t, s.SetOutputFormat(state, format.XRGB8888))

	s.Enable()
	assert.False(t, s.Active(), "enable before init is ignored")
}

func TestSoftwareScalesToDestination(t *testing.T) {
	r := regs.NewMemory("scaler")
	s := NewSoftware(r)

	src := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	state := newState(t, format.XRGB8888, 16, 9, 32, 18, src)

	require.NoError(t, s.Init())
	require.NoError(t, s.UpdateCoordinates(state))
	require.NoError(t, s.UpdateBuffer(state))
	require.NoError(t, s.SetOutputFormat(state, format.XRGB8888))
	s.Enable()

	assert.True(t, s.Active())
	out := s.Output()
	require.NotNil(t, out)
	assert.Equal(t, image.Rect(0, 0, 32, 18), out.Bounds())

	assert.Equal(t, uint32(15|8<<16), r.Read(regs.ScalerInSize))
	assert.Equal(t, uint32(31|17<<16), r.Read(regs.ScalerOutSize))
	// half-size input is a 0.5 ratio in 16.16
	assert.Equal(t, uint32(0x8000), r.Read(regs.ScalerHorzFact))
	assert.Equal(t, uint32(0x1000_0000), r.Read(regs.ScalerBufAddr0))
	assert.Equal(t, uint32(64), r.Read(regs.ScalerLineStr0))
}

func TestSoftwareOpaqueOutputDropsAlpha(t *testing.T) {
	s := NewSoftware(regs.NewMemory("scaler"))

	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 0x40, A: 0x80})
		}
	}
	state := newState(t, format.ARGB8888, 4, 4, 8, 8, src)

	require.NoError(t, s.Init())
	require.NoError(t, s.UpdateCoordinates(state))
	require.NoError(t, s.UpdateBuffer(state))
	require.NoError(t, s.SetOutputFormat(state, format.XRGB8888))
	s.Enable()

	out := s.Output().(*image.RGBA)
	c := out.RGBAAt(3, 3)
	assert.Equal(t, uint8(0xFF), c.A)
	assert.InDelta(t, 0x7F, int(c.R), 3, "colour is un-premultiplied")
}

func TestSoftwareMultiPlanarBuffer(t *testing.T) {
	r := regs.NewMemory("scaler")
	s := NewSoftware(r)
	state := newState(t, format.NV12, 64, 32, 64, 32, image.NewYCbCr(image.Rect(0, 0, 64, 32), image.YCbCrSubsampleRatio420))

	require.NoError(t, s.Init())
	require.NoError(t, s.UpdateBuffer(state))
	assert.Equal(t, uint32(0x1000_0000), r.Read(regs.ScalerBufAddr0))
	assert.Equal(t, uint32(0x1000_0000+64*32), r.Read(regs.ScalerBufAddr1))
	assert.Equal(t, 0, r.Writes(regs.ScalerBufAddr2))
}

func TestSoftwareRejectsBadFormats(t *testing.T) {
	s := NewSoftware(regs.NewMemory("scaler"))
	require.NoError(t, s.Init())

	state := newState(t, format.RGB565, 8, 8, 8, 8, nil)
	state.FB.Format = format.Fourcc(0)
	assert.ErrorIs(t, s.SetOutputFormat(state, format.XRGB8888), kms.ErrInvalidConfig)

	state = newState(t, format.NV12, 8, 8, 8, 8, nil)
	assert.ErrorIs(t, s.SetOutputFormat(state, format.RGB565), kms.ErrInvalidConfig)

	state.Dst = kms.Rect{}
	assert.ErrorIs(t, s.UpdateCoordinates(state), kms.ErrInvalidConfig)
}

func TestSoftwareExit(t *testing.T) {
	r := regs.NewMemory("scaler")
	s := NewSoftware(r)
	state := newState(t, format.XRGB8888, 8, 8, 16, 16, nil)

	require.NoError(t, s.Init())
	require.NoError(t, s.UpdateCoordinates(state))
	s.Enable()
	require.True(t, s.Active())

	s.Exit()
	assert.False(t, s.Active())
	assert.Nil(t, s.Output())
	assert.Equal(t, uint32(0), r.Read(regs.ScalerEn))
	assert.Equal(t, 1, s.Inits())
}

func TestFormatModSupported(t *testing.T) {
	s := NewSoftware(regs.NewMemory("scaler"))

	assert.True(t, s.FormatModSupported(format.NV12, format.ModLinear))
	assert.True(t, s.FormatModSupported(format.NV12, format.ModTiled))
	assert.False(t, s.FormatModSupported(format.NV21, format.ModTiled))
	assert.True(t, s.FormatModSupported(format.RGB565, format.ModLinear))
	assert.False(t, s.FormatModSupported(format.XRGB8888, format.ModTiled))
	assert.False(t, s.FormatModSupported(format.NV12, format.ModInvalid))
}

func TestSoftwareReadsEveryScalerFormat(t *testing.T) {
	s := NewSoftware(regs.NewMemory("scaler"))

	for _, f := range format.For(format.ScalerCapable).Formats {
		t.Run(f.String(), func(t *testing.T) {
			assert.True(t, s.FormatModSupported(f, format.ModLinear))

			state := newState(t, f, 32, 16, 64, 32, image.NewNRGBA(image.Rect(0, 0, 32, 16)))
			require.NoError(t, s.Init())
			require.NoError(t, s.UpdateCoordinates(state))
			require.NoError(t, s.UpdateBuffer(state))
			require.NoError(t, s.SetOutputFormat(state, format.XRGB8888))
			s.Enable()
			require.NotNil(t, s.Output())
			assert.Equal(t, image.Rect(0, 0, 64, 32), s.Output().Bounds())
		})
	}
}
