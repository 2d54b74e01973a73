package freq

import (
	"context"
	"image"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

// ApplyGray filters one channel and min-max normalizes the magnitude.
func ApplyGray(g *image.Gray, p Params) (*image.Gray, error) {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	m, err := NewMask(w, h, p)
	if err != nil {
		return nil, err
	}
	return filterPlane(plane.FromGray(g), m).Normalize(), nil
}

// Apply filters R, G and B concurrently with the same mask and normalizes
// them with one shared range. Alpha is carried through.
func Apply(ctx context.Context, img *image.NRGBA, p Params) (*image.NRGBA, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	m, err := NewMask(w, h, p)
	if err != nil {
		return nil, err
	}
	ch := plane.Split(img)

	var out [3]*plane.Plane
	eg, ctx := errgroup.WithContext(ctx)
	for c := range out {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[c] = filterPlane(plane.FromGray(ch[c]), m)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pl := range out {
		l, u := pl.MinMax()
		lo, hi = math.Min(lo, l), math.Max(hi, u)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return nil, imgerr.Failure("frequency filter produced NaN")
	}
	return plane.Merge(
		plane.NormalizeRange(out[0], lo, hi),
		plane.NormalizeRange(out[1], lo, hi),
		plane.NormalizeRange(out[2], lo, hi),
		ch[3],
	), nil
}

// filterPlane multiplies the unshifted spectrum by the centered mask read at
// shifted coordinates, then returns |IFFT|.
func filterPlane(p *plane.Plane, m *Mask) *plane.Plane {
	rows := make([][]float64, p.Height)
	for y := range rows {
		rows[y] = p.Pix[y*p.Width : (y+1)*p.Width]
	}
	spec := fft.FFT2Real(rows)
	for u := 0; u < p.Height; u++ {
		su := (u + p.Height/2) % p.Height
		for v := 0; v < p.Width; v++ {
			sv := (v + p.Width/2) % p.Width
			spec[u][v] *= complex(m.At(su, sv), 0)
		}
	}
	back := fft.IFFT2(spec)
	out := plane.New(p.Width, p.Height)
	for y := range back {
		for x, c := range back[y] {
			out.Pix[y*p.Width+x] = cmplx.Abs(c)
		}
	}
	return out
}
