package segment

import (
	"image"
	"math"

	"github.com/chaos-io/cutout/plane"
)

// DistanceTransform returns, for every non-zero pixel of bin, the exact
// Euclidean distance to the nearest zero pixel. Zero pixels get 0. When bin
// has no zero pixel at all the result is all zeros.
func DistanceTransform(bin *image.Gray) *plane.Plane {
	w, h := bin.Bounds().Dx(), bin.Bounds().Dy()
	out := plane.New(w, h)
	inf := math.Inf(1)
	anyZero := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if bin.Pix[y*bin.Stride+x] == 0 {
				anyZero = true
			} else {
				out.Pix[y*w+x] = inf
			}
		}
	}
	if !anyZero {
		for i := range out.Pix {
			out.Pix[i] = 0
		}
		return out
	}

	n := max(w, h)
	f := make([]float64, n)
	d := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			f[y] = out.Pix[y*w+x]
		}
		edt1d(f[:h], d[:h], v, z)
		for y := 0; y < h; y++ {
			out.Pix[y*w+x] = d[y]
		}
	}
	for y := 0; y < h; y++ {
		copy(f[:w], out.Pix[y*w:(y+1)*w])
		edt1d(f[:w], d[:w], v, z)
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = math.Sqrt(d[x])
		}
	}
	return out
}

// edt1d is the lower envelope of parabolas over squared distances
// (Felzenszwalb and Huttenlocher). f holds 0 or +Inf on the first pass and
// squared column distances on the second.
func edt1d(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	start := -1
	for q := 0; q < n; q++ {
		if !math.IsInf(f[q], 1) {
			start = q
			break
		}
	}
	if start < 0 {
		for q := range d {
			d[q] = math.Inf(1)
		}
		return
	}
	v[0] = start
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	intersect := func(q, p int) float64 {
		return ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*q-2*p)
	}
	for q := start + 1; q < n; q++ {
		if math.IsInf(f[q], 1) {
			continue
		}
		s := intersect(q, v[k])
		for s <= z[k] {
			k--
			s = intersect(q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}
	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}
