package plane

import "math"

// Border selects how samples outside the plane are synthesized.
type Border int

const (
	// Reflect101 mirrors without repeating the edge sample: gfedcb|abcdefgh|gfedcba.
	Reflect101 Border = iota
	// Replicate repeats the edge sample: aaaaaa|abcdefgh|hhhhhhh.
	Replicate
)

// Index maps a possibly out-of-range coordinate into [0, n).
func (b Border) Index(i, n int) int {
	if i >= 0 && i < n {
		return i
	}
	if n == 1 {
		return 0
	}
	switch b {
	case Replicate:
		if i < 0 {
			return 0
		}
		return n - 1
	default:
		period := 2 * (n - 1)
		i = i % period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - i
		}
		return i
	}
}

// Convolve correlates the plane with a centered 2-D kernel (filter2D semantics).
func Convolve(p *Plane, kernel [][]float64, border Border) *Plane {
	kh := len(kernel)
	kw := len(kernel[0])
	ay, ax := kh/2, kw/2
	out := New(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var sum float64
			for ky := 0; ky < kh; ky++ {
				sy := border.Index(y+ky-ay, p.Height)
				row := p.Pix[sy*p.Width:]
				for kx := 0; kx < kw; kx++ {
					k := kernel[ky][kx]
					if k == 0 {
						continue
					}
					sum += k * row[border.Index(x+kx-ax, p.Width)]
				}
			}
			out.Pix[y*p.Width+x] = sum
		}
	}
	return out
}

// Separable applies kx along rows and then ky along columns.
func Separable(p *Plane, kx, ky []float64, border Border) *Plane {
	w, h := p.Width, p.Height
	tmp := New(w, h)
	ax := len(kx) / 2
	for y := 0; y < h; y++ {
		row := p.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for i, k := range kx {
				sum += k * row[border.Index(x+i-ax, w)]
			}
			tmp.Pix[y*w+x] = sum
		}
	}
	out := New(w, h)
	ay := len(ky) / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for i, k := range ky {
				sum += k * tmp.Pix[border.Index(y+i-ay, h)*w+x]
			}
			out.Pix[y*w+x] = sum
		}
	}
	return out
}

// BoxKernel is a normalized 1-D averaging kernel.
func BoxKernel(size int) []float64 {
	k := make([]float64, size)
	for i := range k {
		k[i] = 1 / float64(size)
	}
	return k
}

// GaussianSigma derives sigma from the kernel size when sigma <= 0.
func GaussianSigma(size int, sigma float64) float64 {
	if sigma > 0 {
		return sigma
	}
	return 0.3*(float64(size-1)*0.5-1) + 0.8
}

// GaussianSize derives an odd kernel size from sigma when size <= 0.
func GaussianSize(size int, sigma float64) int {
	if size > 0 {
		return size
	}
	s := int(math.Round(sigma*3*2+1)) | 1
	return max(s, 1)
}

// GaussianKernel is a normalized 1-D Gaussian of the given odd size.
func GaussianKernel(size int, sigma float64) []float64 {
	sigma = GaussianSigma(size, sigma)
	k := make([]float64, size)
	c := float64(size-1) / 2
	var sum float64
	for i := range k {
		d := float64(i) - c
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianBlur smooths a plane with a separable Gaussian.
func GaussianBlur(p *Plane, size int, sigma float64, border Border) *Plane {
	size = GaussianSize(size, sigma)
	k := GaussianKernel(size, sigma)
	return Separable(p, k, k, border)
}

// BoxBlur smooths a plane with a normalized size×size box.
func BoxBlur(p *Plane, size int, border Border) *Plane {
	k := BoxKernel(size)
	return Separable(p, k, k, border)
}
