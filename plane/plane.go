// Package plane holds the pixel plumbing shared by the filter packages:
// float planes, border handling, convolution and color conversions.
package plane

import (
	"image"
	"math"
)

// Plane is a single channel of float samples in row-major order.
type Plane struct {
	Width, Height int
	Pix           []float64
}

func New(w, h int) *Plane {
	return &Plane{Width: w, Height: h, Pix: make([]float64, w*h)}
}

// FromGray copies an 8-bit plane into a float plane.
func FromGray(g *image.Gray) *Plane {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	p := New(w, h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			p.Pix[y*w+x] = float64(v)
		}
	}
	return p
}

func (p *Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

func (p *Plane) Set(x, y int, v float64) {
	p.Pix[y*p.Width+x] = v
}

func (p *Plane) Clone() *Plane {
	c := New(p.Width, p.Height)
	copy(c.Pix, p.Pix)
	return c
}

func (p *Plane) MinMax() (lo, hi float64) {
	if len(p.Pix) == 0 {
		return 0, 0
	}
	lo, hi = p.Pix[0], p.Pix[0]
	for _, v := range p.Pix[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Gray rounds and saturates the plane into an 8-bit image.
func (p *Plane) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	for i, v := range p.Pix {
		g.Pix[i] = Saturate(v)
	}
	return g
}

// AbsGray stores |v| rounded and saturated.
func (p *Plane) AbsGray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	for i, v := range p.Pix {
		g.Pix[i] = Saturate(math.Abs(v))
	}
	return g
}

// Normalize min-max scales the plane into [0,255]. A flat plane maps to 0.
func (p *Plane) Normalize() *image.Gray {
	lo, hi := p.MinMax()
	return NormalizeRange(p, lo, hi)
}

// NormalizeRange scales with an externally supplied range so several planes
// can share one normalization.
func NormalizeRange(p *Plane, lo, hi float64) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	if hi <= lo {
		return g
	}
	scale := 255 / (hi - lo)
	for i, v := range p.Pix {
		g.Pix[i] = Saturate((v - lo) * scale)
	}
	return g
}

// Saturate rounds half away from zero and clips to [0,255].
func Saturate(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// CloneGray returns a copy whose bounds start at the origin.
func CloneGray(g *image.Gray) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], g.Pix[y*g.Stride:y*g.Stride+w])
	}
	return out
}

// ClearFaint zeroes, in place, every value of g at or below floor.
func ClearFaint(g *image.Gray, floor uint8) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			if v <= floor {
				row[x] = 0
			}
		}
	}
	return g
}

// Empty reports whether the rectangle holds no pixel.
func Empty(r image.Rectangle) bool {
	return r.Dx() <= 0 || r.Dy() <= 0
}
