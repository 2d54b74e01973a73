package histogram

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/cutout/imgerr"
)

// ramp holds every level 0..255 exactly once per row.
func ramp(rows int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, 256, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < 256; x++ {
			g.Pix[y*g.Stride+x] = uint8(x)
		}
	}
	return g
}

func TestEqualizeGray_UniformIsIdentity(t *testing.T) {
	t.Parallel()

	src := ramp(4)
	out, err := EqualizeGray(src, Global)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestEqualizeGray_StretchesNarrowRange(t *testing.T) {
	t.Parallel()

	g := image.NewGray(image.Rect(0, 0, 4, 1))
	copy(g.Pix, []uint8{100, 101, 102, 103})
	out, err := EqualizeGray(g, Global)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 85, 170, 255}, out.Pix)
}

func TestEqualizeGray_FlatImage(t *testing.T) {
	t.Parallel()

	g := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range g.Pix {
		g.Pix[i] = 77
	}
	for _, m := range Methods() {
		out, err := EqualizeGray(g, m)
		require.NoError(t, err)
		assert.Len(t, out.Pix, 25, m.String())
	}
	out, _ := EqualizeGray(g, Global)
	assert.Equal(t, uint8(77), out.Pix[12])
}

func TestCLAHE_SingleUnclippedTileIsCDF(t *testing.T) {
	t.Parallel()

	src := ramp(4)
	out, err := CLAHE(src, CLAHEParams{ClipLimit: 0, Grid: 1})
	require.NoError(t, err)
	for x := 0; x < 256; x++ {
		want := uint8(math.Round(float64(x+1) * 255 / 256))
		assert.Equal(t, want, out.Pix[2*out.Stride+x], "x=%d", x)
	}
}

func TestCLAHE_PadsUnevenSizes(t *testing.T) {
	t.Parallel()

	src := image.NewGray(image.Rect(0, 0, 37, 21))
	for y := 0; y < 21; y++ {
		for x := 0; x < 37; x++ {
			src.Pix[y*src.Stride+x] = uint8(60 + x + y)
		}
	}
	out, err := CLAHE(src, CLAHEParams{ClipLimit: 2, Grid: 8})
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Less(t, out.Pix[0], out.Pix[20*out.Stride+36])

	_, err = CLAHE(src, CLAHEParams{ClipLimit: 2, Grid: 0})
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)
}

func TestClipHistogram_ConservesMass(t *testing.T) {
	t.Parallel()

	var hist [256]int
	hist[10] = 1000
	hist[20] = 3
	clipHistogram(&hist, 40)
	sum := 0
	for _, n := range hist {
		sum += n
	}
	assert.Equal(t, 1003, sum)
	assert.LessOrEqual(t, hist[10], 40+4)
}

func TestEqualize_ColorKeepsAlpha(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	for x := 0; x < 4; x++ {
		img.SetNRGBA(x, 0, color.NRGBA{R: uint8(100 + x), G: uint8(100 + x), B: uint8(100 + x), A: uint8(50 * x)})
	}
	out, err := Equalize(img, Global)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0, G: 0, B: 0, A: 0}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 150}, out.NRGBAAt(3, 0))
}

func TestMatchGray(t *testing.T) {
	t.Parallel()

	src := image.NewGray(image.Rect(0, 0, 4, 1))
	copy(src.Pix, []uint8{10, 10, 20, 20})
	ref := image.NewGray(image.Rect(0, 0, 4, 1))
	copy(ref.Pix, []uint8{100, 100, 200, 200})

	out, err := MatchGray(src, ref)
	require.NoError(t, err)
	assert.Equal(t, []uint8{100, 100, 200, 200}, out.Pix)

	self, err := MatchGray(ref, ref)
	require.NoError(t, err)
	assert.Equal(t, ref.Pix, self.Pix)

	_, err = MatchGray(src, image.NewGray(image.Rectangle{}))
	assert.ErrorIs(t, err, imgerr.ErrDegenerateInput)
}

func TestMatch_Color(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 9})
	src.SetNRGBA(1, 0, color.NRGBA{R: 5, G: 6, B: 7, A: 255})
	ref := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	ref.SetNRGBA(0, 0, color.NRGBA{R: 50, G: 60, B: 70, A: 255})
	ref.SetNRGBA(1, 0, color.NRGBA{R: 150, G: 160, B: 170, A: 255})

	out, err := Match(context.Background(), src, ref)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 50, G: 60, B: 70, A: 9}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 150, G: 160, B: 170, A: 255}, out.NRGBAAt(1, 0))
}

func TestBrightnessContrast(t *testing.T) {
	t.Parallel()

	g := image.NewGray(image.Rect(0, 0, 4, 1))
	copy(g.Pix, []uint8{0, 10, 100, 250})

	out, err := BrightnessContrastGray(g, -50, 1.5)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 100, 255}, out.Pix)

	out, err = BrightnessContrastGray(g, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, g.Pix, out.Pix)

	_, err = BrightnessContrastGray(g, 101, 1)
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)
	_, err = BrightnessContrastGray(g, 0, 0.4)
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)
}

func TestGamma(t *testing.T) {
	t.Parallel()

	src := ramp(1)
	out, err := GammaGray(src, 1)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)

	bright, err := GammaGray(src, 2.2)
	require.NoError(t, err)
	assert.Greater(t, bright.Pix[128], uint8(128))
	assert.Equal(t, uint8(0), bright.Pix[0])
	assert.Equal(t, uint8(255), bright.Pix[255])

	_, err = GammaGray(src, 0)
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)
}
