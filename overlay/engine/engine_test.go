package engine

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/regs"
)

type countingScaler struct {
	mu      sync.Mutex
	inits   int
	exits   int
	initErr error
}

func (c *countingScaler) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initErr != nil {
		return c.initErr
	}
	c.inits++
	return nil
}
func (c *countingScaler) UpdateCoordinates(*kms.PlaneState) error              { return nil }
func (c *countingScaler) UpdateBuffer(*kms.PlaneState) error                   { return nil }
func (c *countingScaler) SetOutputFormat(*kms.PlaneState, format.Fourcc) error { return nil }
func (c *countingScaler) Enable()                                              {}
func (c *countingScaler) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exits++
}
func (c *countingScaler) FormatModSupported(format.Fourcc, format.Modifier) bool { return false }

func newEngine(t *testing.T) (*Engine, *regs.Memory, *countingScaler) {
	t.Helper()
	r := regs.NewMemory("blender")
	sc := &countingScaler{}
	return New(Config{Width: 64, Height: 32}, r, sc), r, sc
}

func TestNewProgramsOutput(t *testing.T) {
	e, r, _ := newEngine(t)
	assert.Equal(t, uint32(63|31<<16), r.Read(regs.DispSize))
	assert.Equal(t, uint32(0x3), r.Read(regs.ModCtl))
	assert.True(t, e.HasScaler())
	assert.Equal(t, defaultPoolSize, e.Config().StatePoolSize)

	noScaler := New(Config{}, regs.NewMemory("blender"), nil)
	assert.False(t, noScaler.HasScaler())
	assert.ErrorIs(t, noScaler.ClaimScaler(0), kms.ErrInvalidConfig)
}

func TestScalerTeardownIsDeferred(t *testing.T) {
	e, _, sc := newEngine(t)

	require.NoError(t, e.ClaimScaler(0))
	e.CommitComplete()

	e.RequestScalerTeardown(0)
	assert.True(t, e.TeardownPending())
	assert.Equal(t, 0, sc.exits, "request must not tear down synchronously")

	e.CommitComplete()
	assert.False(t, e.TeardownPending())
	assert.Equal(t, 1, sc.exits)
	assert.Equal(t, 1, e.Teardowns())

	// nothing pending, nothing happens
	e.CommitComplete()
	assert.Equal(t, 1, sc.exits)
}

func TestScalerTeardownSkippedWhenReclaimed(t *testing.T) {
	e, _, sc := newEngine(t)

	// layer 0 gives the scaler up while layer 1 picks it up in the same cycle
	e.RequestScalerTeardown(0)
	require.NoError(t, e.ClaimScaler(1))
	e.CommitComplete()

	assert.False(t, e.TeardownPending())
	assert.Equal(t, 0, sc.exits)
	assert.Equal(t, 1, sc.inits)

	// the claim only protects one cycle
	e.RequestScalerTeardown(1)
	e.CommitComplete()
	assert.Equal(t, 1, sc.exits)
}

func TestFailedClaimKeepsTeardown(t *testing.T) {
	e, _, sc := newEngine(t)
	sc.initErr = errors.New("clock gate stuck")

	e.RequestScalerTeardown(0)
	assert.Error(t, e.ClaimScaler(1))
	e.CommitComplete()

	assert.False(t, e.TeardownPending())
	assert.Equal(t, 1, sc.exits, "a failed claim must not cancel the teardown")
}

func TestConcurrentTeardownRequests(t *testing.T) {
	e, _, sc := newEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < NumLayers; i++ {
		wg.Add(1)
		go func(layer int) {
			defer wg.Done()
			e.RequestScalerTeardown(layer)
		}(i)
	}
	wg.Wait()

	e.CommitComplete()
	assert.Equal(t, 1, sc.exits, "one sweep, one teardown")
}

func TestSlotRegistration(t *testing.T) {
	e, _, _ := newEngine(t)

	require.NoError(t, e.RegisterLayerSlot(0))
	assert.ErrorIs(t, e.RegisterLayerSlot(0), kms.ErrInitFailed)
	assert.ErrorIs(t, e.RegisterLayerSlot(NumLayers), kms.ErrIDOutOfRange)

	slot, err := e.RegisterSpriteSlot(2, 32)
	require.NoError(t, err)
	assert.Equal(t, NumLayers+2, slot)
	assert.Equal(t, uint64(1)<<slot, e.SpriteMask())

	_, err = e.RegisterSpriteSlot(32, 32)
	assert.ErrorIs(t, err, kms.ErrIDOutOfRange)
	_, err = e.RegisterSpriteSlot(-1, 32)
	assert.ErrorIs(t, err, kms.ErrIDOutOfRange)
	assert.Equal(t, uint64(1)<<slot, e.SpriteMask(), "failed registration leaves the mask alone")

	_, err = e.RegisterSpriteSlot(2, 32)
	assert.ErrorIs(t, err, kms.ErrInitFailed)
	assert.Equal(t, uint64(1)|uint64(1)<<slot, e.SlotMask())
}

func testState(t *testing.T, f format.Fourcc, w, h int) *kms.PlaneState {
	t.Helper()
	fb, err := kms.NewFramebuffer(7, f, format.ModLinear, w, h, 0x2000_0000)
	require.NoError(t, err)
	return &kms.PlaneState{
		Src:   kms.FixedRectFromInts(0, 0, w, h),
		Dst:   kms.Rect{X: 2, Y: 3, W: w, H: h},
		FB:    fb,
		Zpos:  1,
		Alpha: kms.AlphaOpaque,
	}
}

func TestLayerProgramming(t *testing.T) {
	e, r, _ := newEngine(t)
	st := testState(t, format.XRGB8888, 16, 8)

	require.NoError(t, e.UpdateLayerCoord(1, st))
	assert.Equal(t, uint32(15|7<<16), r.Read(regs.LayerSize(1)))
	assert.Equal(t, uint32(2|3<<16), r.Read(regs.LayerCoord(1)))

	require.NoError(t, e.UpdateLayerFormats(1, st))
	assert.Equal(t, uint32(0x9<<8), r.Read(regs.LayerAttCtl1(1)))

	require.NoError(t, e.UpdateLayerBuffer(1, st))
	assert.Equal(t, uint32(16*4*8), r.Read(regs.LayerLineWidth(1)))
	assert.Equal(t, uint32(0), r.Read(regs.LayerAddrLow(1)), "low word of 0x1_0000_0000")
	assert.Equal(t, uint32(0x1<<8), r.Read(regs.LayerAddrHigh), "address bit 32 lands in the layer's byte")

	require.NoError(t, e.UpdateLayerZpos(1, st))
	require.NoError(t, e.UpdateLayerAlpha(1, st))
	att0 := r.Read(regs.LayerAttCtl0(1))
	assert.Equal(t, uint32(1), (att0>>regs.AttCtl0PrioLow)&0x3)
	assert.Equal(t, uint32(0xFF), att0>>regs.AttCtl0AlphaLow)
	assert.Zero(t, att0&(1<<regs.AttCtl0GlobalAlphaEn))

	require.NoError(t, e.LayerEnable(1, true))
	assert.True(t, e.LayerEnabled(1))
	assert.False(t, e.LayerEnabled(0))
	require.NoError(t, e.LayerEnable(1, false))
	assert.False(t, e.LayerEnabled(1))
}

func TestLayerProgrammingRejects(t *testing.T) {
	e, _, _ := newEngine(t)

	st := testState(t, format.NV12, 16, 8)
	assert.ErrorIs(t, e.UpdateLayerFormats(0, st), kms.ErrInvalidConfig)

	st = testState(t, format.XRGB8888, 16, 8)
	st.Zpos = NumLayers
	assert.ErrorIs(t, e.UpdateLayerZpos(0, st), kms.ErrInvalidConfig)
	assert.ErrorIs(t, e.UpdateLayerCoord(NumLayers, st), kms.ErrIDOutOfRange)
	assert.ErrorIs(t, e.UpdateLayerFrontend(0, format.RGB565), kms.ErrInvalidConfig)

	st.FB = nil
	assert.ErrorIs(t, e.UpdateLayerBuffer(0, st), kms.ErrInvalidConfig)
}

func TestFrontendAndPackedYUV(t *testing.T) {
	e, r, _ := newEngine(t)

	require.NoError(t, e.UpdateLayerFrontend(0, format.XRGB8888))
	att0 := r.Read(regs.LayerAttCtl0(0))
	assert.NotZero(t, att0&(1<<regs.AttCtl0VideoEn))

	// reading from memory again clears the video channel
	require.NoError(t, e.UpdateLayerFormats(0, testState(t, format.YUYV, 16, 8)))
	att0 = r.Read(regs.LayerAttCtl0(0))
	assert.Zero(t, att0&(1<<regs.AttCtl0VideoEn))
	assert.NotZero(t, att0&(1<<regs.AttCtl0YUVEn))
	assert.Equal(t, regs.IYUVPacked422<<regs.IYUVCtlFormatLow, r.Read(regs.IYUVCtl))
}

func TestPlanarRGBUsesYUVChannel(t *testing.T) {
	e, r, _ := newEngine(t)
	st := testState(t, format.R8G8B8, 16, 8)

	require.NoError(t, e.UpdateLayerFormats(2, st))
	assert.Equal(t, regs.IYUVPlanar444<<regs.IYUVCtlFormatLow, r.Read(regs.IYUVCtl))
	assert.NotZero(t, r.Read(regs.LayerAttCtl0(2))&(1<<regs.AttCtl0YUVEn))

	require.NoError(t, e.UpdateLayerBuffer(2, st))
	for plane := 0; plane < 3; plane++ {
		assert.Equal(t, uint32(16), r.Read(regs.IYUVLineWidth(plane)))
		assert.Equal(t, uint32(0x2000_0000+plane*16*8), r.Read(regs.IYUVAddr(plane)))
	}
	assert.Zero(t, r.Writes(regs.LayerAddrLow(2)), "the layer's own address is unused")
}

func TestNewRGBCodes(t *testing.T) {
	e, r, _ := newEngine(t)

	require.NoError(t, e.UpdateLayerFormats(3, testState(t, format.BGRA8888, 4, 4)))
	assert.Equal(t, uint32(0xF<<8), r.Read(regs.LayerAttCtl1(3)))
	require.NoError(t, e.UpdateLayerFormats(3, testState(t, format.BGR888, 4, 4)))
	assert.Equal(t, uint32(0x8<<8), r.Read(regs.LayerAttCtl1(3)))
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestComposeStacksByZpos(t *testing.T) {
	e, _, _ := newEngine(t)

	red := testState(t, format.XRGB8888, 8, 8)
	red.FB.Image = solid(8, 8, color.RGBA{R: 0xFF, A: 0xFF})
	red.Dst = kms.Rect{X: 0, Y: 0, W: 8, H: 8}
	red.Zpos = 1

	blue := testState(t, format.XRGB8888, 8, 8)
	blue.FB.Image = solid(8, 8, color.RGBA{B: 0xFF, A: 0xFF})
	blue.Dst = kms.Rect{X: 4, Y: 0, W: 8, H: 8}
	blue.Zpos = 0

	for layer, st := range map[int]*kms.PlaneState{0: red, 1: blue} {
		require.NoError(t, e.UpdateLayerCoord(layer, st))
		require.NoError(t, e.UpdateLayerFormats(layer, st))
		require.NoError(t, e.UpdateLayerBuffer(layer, st))
		require.NoError(t, e.UpdateLayerZpos(layer, st))
		require.NoError(t, e.UpdateLayerAlpha(layer, st))
		require.NoError(t, e.LayerEnable(layer, true))
	}

	out := e.Compose()
	assert.Equal(t, color.RGBA{R: 0xFF, A: 0xFF}, out.RGBAAt(5, 1), "red sits on top of blue")
	assert.Equal(t, color.RGBA{B: 0xFF, A: 0xFF}, out.RGBAAt(10, 1))
	assert.Equal(t, color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xFF}, out.RGBAAt(30, 20), "background")

	status := e.Layers()
	require.Len(t, status, NumLayers)
	assert.True(t, status[0].Enabled)
	assert.Equal(t, 7, status[0].FB)
	assert.False(t, status[2].Enabled)
	assert.Equal(t, -1, status[2].FB)
}
