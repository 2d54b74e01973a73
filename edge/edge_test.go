package edge

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

// step is dark left of x=6 and bright from x=6 on.
func step() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, 12, 8))
	for y := 0; y < 8; y++ {
		for x := 6; x < 12; x++ {
			g.Pix[y*g.Stride+x] = 200
		}
	}
	return g
}

func column(g *image.Gray, x int) []uint8 {
	out := make([]uint8, g.Bounds().Dy())
	for y := range out {
		out[y] = g.Pix[y*g.Stride+x]
	}
	return out
}

func TestDerivKernel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{1, 2, 1}, plane.DerivKernel(0, 3))
	assert.Equal(t, []float64{-1, 0, 1}, plane.DerivKernel(1, 3))
	assert.Equal(t, []float64{-1, -2, 0, 2, 1}, plane.DerivKernel(1, 5))
	assert.Equal(t, []float64{1, 0, -2, 0, 1}, plane.DerivKernel(2, 5))
	assert.Equal(t, []float64{-1, 0, 1}, plane.DerivKernel(1, 1))
	assert.Equal(t, []float64{1}, plane.DerivKernel(0, 1))
}

func TestSobel_Step(t *testing.T) {
	t.Parallel()

	out, err := SobelGray(step(), 3)
	require.NoError(t, err)
	for y := 0; y < 8; y++ {
		assert.Equal(t, uint8(255), out.Pix[y*out.Stride+5])
		assert.Equal(t, uint8(255), out.Pix[y*out.Stride+6])
		assert.Equal(t, uint8(0), out.Pix[y*out.Stride+2])
		assert.Equal(t, uint8(0), out.Pix[y*out.Stride+9])
	}

	_, err = SobelGray(step(), 4)
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)
}

func TestPrewitt_Step(t *testing.T) {
	t.Parallel()

	out := PrewittGray(step())
	assert.Equal(t, uint8(255), out.Pix[3*out.Stride+5])
	assert.Equal(t, uint8(0), out.Pix[3*out.Stride+0])
}

func TestCanny_ThinBinaryEdge(t *testing.T) {
	t.Parallel()

	out, err := CannyGray(step(), 50, 150, 3)
	require.NoError(t, err)
	for x := 0; x < 12; x++ {
		want := uint8(0)
		if x == 5 {
			want = 255
		}
		for _, v := range column(out, x) {
			assert.Equal(t, want, v, "x=%d", x)
		}
	}

	swapped, err := CannyGray(step(), 150, 50, 3)
	require.NoError(t, err)
	assert.Equal(t, out.Pix, swapped.Pix)

	_, err = CannyGray(step(), 50, 150, 4)
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)
}

func TestCanny_FlatImageHasNoEdges(t *testing.T) {
	t.Parallel()

	g := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range g.Pix {
		g.Pix[i] = 120
	}
	out, err := CannyGray(g, 10, 20, 5)
	require.NoError(t, err)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(0), v)
	}
}

func TestLaplacian_Step(t *testing.T) {
	t.Parallel()

	out, err := LaplacianGray(step(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{200, 200, 200, 200, 200, 200, 200, 200}, column(out, 5))
	assert.Equal(t, uint8(0), out.Pix[0])

	_, err = LaplacianGray(step(), 9)
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 12, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 12; x++ {
			c := color.NRGBA{A: 255}
			if x >= 6 {
				c = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	res, err := Compare(img)
	require.NoError(t, err)
	require.Len(t, res, 4)
	for _, m := range Methods() {
		require.Contains(t, res, m)
		assert.Equal(t, image.Rect(0, 0, 12, 8), res[m].Bounds(), m.String())
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	for _, m := range Methods() {
		got, err := ParseMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMethod("roberts")
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)
}
