package plane

// DerivKernel returns the 1-D Sobel kernel of the given derivative order and
// size: (1+x)^(size-1-order) * (x-1)^order, coefficients in ascending powers.
// Size 1 means a 3-tap kernel for order > 0 and [1] for order 0.
func DerivKernel(order, size int) []float64 {
	if size == 1 {
		if order == 0 {
			return []float64{1}
		}
		size = 3
	}
	k := []float64{1}
	for i := 0; i < size-1-order; i++ {
		k = polyMul(k, []float64{1, 1})
	}
	for i := 0; i < order; i++ {
		k = polyMul(k, []float64{-1, 1})
	}
	return k
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// Sobel computes the (dx, dy) derivative with the given aperture.
func Sobel(p *Plane, dx, dy, size int, border Border) *Plane {
	return Separable(p, DerivKernel(dx, size), DerivKernel(dy, size), border)
}

// Laplacian computes d²/dx² + d²/dy². Sizes 1 and 3 use fixed 3×3 kernels.
func Laplacian(p *Plane, size int, border Border) *Plane {
	switch size {
	case 1:
		return Convolve(p, [][]float64{{0, 1, 0}, {1, -4, 1}, {0, 1, 0}}, border)
	case 3:
		return Convolve(p, [][]float64{{2, 0, 2}, {0, -8, 0}, {2, 0, 2}}, border)
	}
	d2x := Sobel(p, 2, 0, size, border)
	d2y := Sobel(p, 0, 2, size, border)
	for i := range d2x.Pix {
		d2x.Pix[i] += d2y.Pix[i]
	}
	return d2x
}
