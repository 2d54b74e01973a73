package plane

// Integral is a summed-area table with one extra leading row and column.
type Integral struct {
	width, height int
	sum           []float64
}

func NewIntegral(p *Plane) *Integral {
	w, h := p.Width, p.Height
	it := &Integral{width: w, height: h, sum: make([]float64, (w+1)*(h+1))}
	for y := 1; y <= h; y++ {
		var row float64
		for x := 1; x <= w; x++ {
			row += p.Pix[(y-1)*w+x-1]
			it.sum[y*(w+1)+x] = it.sum[(y-1)*(w+1)+x] + row
		}
	}
	return it
}

// Mean averages the window of the given radius around (x, y), clipped to the plane.
func (it *Integral) Mean(x, y, radius int) float64 {
	x1, y1 := max(0, x-radius), max(0, y-radius)
	x2, y2 := min(it.width-1, x+radius), min(it.height-1, y+radius)
	s := it.sum[(y2+1)*(it.width+1)+x2+1] -
		it.sum[y1*(it.width+1)+x2+1] -
		it.sum[(y2+1)*(it.width+1)+x1] +
		it.sum[y1*(it.width+1)+x1]
	return s / float64((x2-x1+1)*(y2-y1+1))
}

// BoxMean returns the clipped-window mean of every pixel.
func BoxMean(p *Plane, radius int) *Plane {
	it := NewIntegral(p)
	out := New(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			out.Pix[y*p.Width+x] = it.Mean(x, y, radius)
		}
	}
	return out
}

// Mul multiplies two planes elementwise.
func Mul(a, b *Plane) *Plane {
	out := New(a.Width, a.Height)
	for i := range out.Pix {
		out.Pix[i] = a.Pix[i] * b.Pix[i]
	}
	return out
}
