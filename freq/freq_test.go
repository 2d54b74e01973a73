package freq

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/cutout/imgerr"
)

func TestHighPassIsComplementOfLowPass(t *testing.T) {
	t.Parallel()

	for _, size := range [][2]int{{16, 16}, {31, 20}, {7, 40}} {
		low, err := NewMask(size[0], size[1], Params{Kind: LowPass, Cutoff: 5})
		require.NoError(t, err)
		high, err := NewMask(size[0], size[1], Params{Kind: HighPass, Cutoff: 5})
		require.NoError(t, err)
		for i := range low.Values {
			assert.Equal(t, 1-low.Values[i], high.Values[i])
		}
	}
}

func TestNewMask_Shapes(t *testing.T) {
	t.Parallel()

	low, err := NewMask(10, 8, DefaultParams(LowPass))
	require.NoError(t, err)
	assert.Equal(t, 1.0, low.At(4, 5), "center passes")

	band, err := NewMask(64, 64, Params{Kind: BandPass, LowCutoff: 4, HighCutoff: 8})
	require.NoError(t, err)
	assert.Equal(t, 0.0, band.At(32, 32))
	assert.Equal(t, 1.0, band.At(32, 38))
	assert.Equal(t, 0.0, band.At(32, 50))

	bw, err := NewMask(64, 64, Params{Kind: ButterworthLowPass, Cutoff: 10, Order: 2})
	require.NoError(t, err)
	assert.Equal(t, 1.0, bw.At(32, 32))
	assert.InDelta(t, 0.5, bw.At(32, 42), 1e-12, "half power at the cutoff")
	for _, v := range bw.Values {
		assert.True(t, v > 0 && v <= 1)
	}
}

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []Params{
		{Kind: LowPass, Cutoff: 0},
		{Kind: BandPass, LowCutoff: 30, HighCutoff: 10},
		{Kind: ButterworthLowPass, Cutoff: 10, Order: 0},
		{Kind: Kind(9), Cutoff: 10},
	}
	for _, p := range tests {
		_, err := NewMask(8, 8, p)
		assert.ErrorIs(t, err, imgerr.ErrInvalidParameter, "%+v", p)
	}
}

func TestApplyGray_AllPassKeepsStructure(t *testing.T) {
	t.Parallel()

	g := image.NewGray(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			g.Pix[y*g.Stride+x] = uint8(x * 17)
		}
	}
	out, err := ApplyGray(g, Params{Kind: LowPass, Cutoff: 1000})
	require.NoError(t, err)
	for i := range g.Pix {
		assert.InDelta(t, int(g.Pix[i]), int(out.Pix[i]), 1)
	}
}

func TestApply_ColorKeepsAlphaAndSharedRange(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: 10, B: 100, A: uint8(y * 30)})
		}
	}
	out, err := Apply(context.Background(), img, Params{Kind: LowPass, Cutoff: 1000})
	require.NoError(t, err)
	for y := 0; y < 8; y++ {
		assert.Equal(t, uint8(y*30), out.NRGBAAt(3, y).A)
	}
	// R spans the whole range, so G stays darker than B after the joint stretch.
	px := out.NRGBAAt(2, 2)
	assert.Less(t, px.G, px.B)
	assert.Equal(t, uint8(255), out.NRGBAAt(7, 0).R)
}
