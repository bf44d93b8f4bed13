package scenario

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
	"github.com/valerio/go-overlay/overlay/layer"
	"github.com/valerio/go-overlay/overlay/regs"
)

func TestLoadVideoScenario(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "video.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "video-over-desktop", f.Name)
	assert.Equal(t, 640, f.Engine.Width)
	assert.Equal(t, uint32(0xFF202020), f.Engine.BackColor)
	assert.True(t, f.Engine.HasScaler())
	assert.Equal(t, 2, f.Sprites)
	assert.Len(t, f.Buffers, 3)
	require.Len(t, f.Cycles, 4)
	assert.True(t, f.Cycles[2].TestOnly)

	descs, err := f.Descriptors()
	require.NoError(t, err)
	assert.Equal(t, layer.DefaultDescriptors, descs)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "engine: [1, 2"},
		{"unknown format", "buffers: {a: {format: ABCD, width: 4, height: 4}}"},
		{"unknown modifier", "buffers: {a: {format: XR24, modifier: swizzled, width: 4, height: 4}}"},
		{"unknown pattern", "buffers: {a: {format: XR24, width: 4, height: 4, pattern: plaid}}"},
		{"empty buffer", "buffers: {a: {format: XR24}}"},
		{"unknown buffer", "cycles: [{planes: [{layer: 0, buffer: nope}]}]"},
		{"no target", "cycles: [{planes: [{}]}]"},
		{"two targets", "cycles: [{planes: [{layer: 0, sprite: 0}]}]"},
		{"unknown role", "planes: [{role: cursor}]"},
		{"unknown kind", "planes: [{role: primary, kind: gpu}]"},
		{"too many sprites", "sprites: 33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDescriptorsFromFile(t *testing.T) {
	f, err := Parse([]byte(`
planes:
  - {role: primary}
  - {kind: scaler}
  - {kind: yuv}
`))
	require.NoError(t, err)

	descs, err := f.Descriptors()
	require.NoError(t, err)
	assert.Equal(t, []layer.Descriptor{
		{Role: layer.Primary, Kind: format.DirectOnly},
		{Role: layer.Overlay, Kind: format.ScalerCapable},
		{Role: layer.Overlay, Kind: format.YUVCapable},
	}, descs)
}

func TestPlayVideoScenario(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "video.yaml"))
	require.NoError(t, err)
	d, err := Build(f, Options{})
	require.NoError(t, err)

	assert.Len(t, d.Layers, 4)
	assert.Len(t, d.Sprites, 2)
	require.NotNil(t, d.Scaler)
	assert.IsType(t, &image.YCbCr{}, d.Buffers["movie"].Image)

	var steps []Step
	err = d.Run(context.Background(), func(s Step) error {
		steps = append(steps, s)
		switch s.Index {
		case 1:
			assert.True(t, d.Scaler.Active(), "movie goes through the scaler")
			assert.True(t, s.Result.SpritePoolEnabled)
			frame := d.Engine.Compose()
			assert.Equal(t, image.Rect(0, 0, 640, 360), frame.Bounds())
		case 2:
			assert.ErrorIs(t, s.Result.Planes[0].Err, kms.ErrInvalidConfig)
			assert.False(t, d.Engine.LayerEnabled(3))
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, steps, 4)

	for _, i := range []int{0, 1, 3} {
		assert.NoError(t, steps[i].Result.Err(), "cycle %d", i)
	}
	assert.True(t, steps[1].Result.Planes[0].UsesScaler)

	assert.False(t, d.Scaler.Active())
	assert.Equal(t, 1, d.Engine.Teardowns())
	assert.True(t, d.Engine.LayerEnabled(0))
	assert.False(t, d.Engine.LayerEnabled(1))
	assert.Equal(t, uint32(0), d.Regs.Read(regs.SpriteEn))
}

func TestScalerHandoverScenario(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "scenarios", "scaler_handover.yaml"))
	require.NoError(t, err)
	d, err := Build(f, Options{})
	require.NoError(t, err)

	var results []error
	require.NoError(t, d.Run(context.Background(), func(s Step) error {
		results = append(results, s.Result.Err())
		return nil
	}))

	require.Len(t, results, 3)
	assert.NoError(t, results[0])
	assert.ErrorIs(t, results[1], kms.ErrScalerBusy)
	assert.NoError(t, results[2])
	assert.True(t, d.Scaler.Active())
	assert.Zero(t, d.Engine.Teardowns())
}

func TestOptions(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "video.yaml"))
	require.NoError(t, err)

	d, err := Build(f, Options{NoScaler: true, TestOnly: true})
	require.NoError(t, err)
	assert.Nil(t, d.Scaler)
	assert.False(t, d.Engine.HasScaler())
	assert.Equal(t, format.DirectOnly, d.Layers[1].Kind(), "scaler plane degrades to rgb")

	c, err := d.Cycle(0)
	require.NoError(t, err)
	assert.True(t, c.TestOnly)

	require.NoError(t, d.Run(context.Background(), nil))
	assert.False(t, d.Engine.LayerEnabled(0), "dry runs change nothing")

	_, err = d.Cycle(9)
	assert.Error(t, err)
}

func TestCycleDefaults(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "video.yaml"))
	require.NoError(t, err)
	d, err := Build(f, Options{})
	require.NoError(t, err)

	c, err := d.Cycle(0)
	require.NoError(t, err)
	require.Len(t, c.Requests, 1)
	req := c.Requests[0]
	assert.Equal(t, 0, req.Slot)
	assert.Equal(t, kms.FixedRectFromInts(0, 0, 640, 360), req.Src)
	assert.Equal(t, kms.Rect{W: 640, H: 360}, req.Dst)
	require.NotNil(t, req.Zpos)
	assert.Equal(t, 0, *req.Zpos)

	c, err = d.Cycle(1)
	require.NoError(t, err)
	assert.Equal(t, d.Sprites[0].Slot(), c.Requests[1].Slot)

	c, err = d.Cycle(3)
	require.NoError(t, err)
	assert.Nil(t, c.Requests[0].FB)
}

func TestNames(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "video.yaml"))
	require.NoError(t, err)
	d, err := Build(f, Options{})
	require.NoError(t, err)

	assert.Equal(t, "video-over-desktop", d.Name())
	assert.Equal(t, "movie off", d.CycleName(3))
	assert.Equal(t, "", d.CycleName(4))
	assert.Equal(t, 4, d.Cycles())
}
