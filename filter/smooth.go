package filter

import (
	"image"
	"math"
	"slices"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

func MeanGray(g *image.Gray, ksize int) (*image.Gray, error) {
	if err := imgerr.OddKernel("kernel_size", ksize, 1, maxKernel); err != nil {
		return nil, err
	}
	return plane.BoxBlur(plane.FromGray(g), ksize, plane.Reflect101).Gray(), nil
}

func Mean(img *image.NRGBA, ksize int) (*image.NRGBA, error) {
	if err := imgerr.OddKernel("kernel_size", ksize, 1, maxKernel); err != nil {
		return nil, err
	}
	return plane.MapRGB(img, func(g *image.Gray) *image.Gray {
		return plane.BoxBlur(plane.FromGray(g), ksize, plane.Reflect101).Gray()
	}), nil
}

// MedianGray picks the median of each ksize×ksize window, replicating edges.
func MedianGray(g *image.Gray, ksize int) (*image.Gray, error) {
	if err := imgerr.OddKernel("kernel_size", ksize, 1, maxKernel); err != nil {
		return nil, err
	}
	return median(g, ksize), nil
}

func Median(img *image.NRGBA, ksize int) (*image.NRGBA, error) {
	if err := imgerr.OddKernel("kernel_size", ksize, 1, maxKernel); err != nil {
		return nil, err
	}
	return plane.MapRGB(img, func(g *image.Gray) *image.Gray { return median(g, ksize) }), nil
}

func median(g *image.Gray, ksize int) *image.Gray {
	if ksize == 1 {
		return plane.CloneGray(g)
	}
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	r := ksize / 2
	win := make([]uint8, 0, ksize*ksize)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			win = win[:0]
			for dy := -r; dy <= r; dy++ {
				sy := plane.Replicate.Index(y+dy, h)
				for dx := -r; dx <= r; dx++ {
					win = append(win, g.Pix[sy*g.Stride+plane.Replicate.Index(x+dx, w)])
				}
			}
			slices.Sort(win)
			out.Pix[y*out.Stride+x] = win[len(win)/2]
		}
	}
	return out
}

// GaussianGray blurs with a ksize×ksize Gaussian; sigma <= 0 derives it from ksize.
func GaussianGray(g *image.Gray, ksize int, sigma float64) (*image.Gray, error) {
	if err := imgerr.OddKernel("kernel_size", ksize, 1, maxKernel); err != nil {
		return nil, err
	}
	return plane.GaussianBlur(plane.FromGray(g), ksize, sigma, plane.Reflect101).Gray(), nil
}

func Gaussian(img *image.NRGBA, ksize int, sigma float64) (*image.NRGBA, error) {
	if err := imgerr.OddKernel("kernel_size", ksize, 1, maxKernel); err != nil {
		return nil, err
	}
	return plane.MapRGB(img, func(g *image.Gray) *image.Gray {
		return plane.GaussianBlur(plane.FromGray(g), ksize, sigma, plane.Reflect101).Gray()
	}), nil
}

func validateBilateral(d int, sigmaColor, sigmaSpace float64) error {
	if d < 1 || d > maxKernel {
		return imgerr.Invalid("bilateral diameter must be in [1, %d], got %d", maxKernel, d)
	}
	if sigmaColor <= 0 || sigmaSpace <= 0 {
		return imgerr.Invalid("bilateral sigmas must be positive, got %g/%g", sigmaColor, sigmaSpace)
	}
	return nil
}

// bilateralWindow holds the circular neighborhood and its spatial weights.
type bilateralWindow struct {
	dx, dy []int
	weight []float64
	color  []float64
}

func newBilateralWindow(d int, sigmaColor, sigmaSpace float64, channels int) *bilateralWindow {
	r := d / 2
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)
	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	win := &bilateralWindow{color: make([]float64, 256*channels)}
	for i := range win.color {
		win.color[i] = math.Exp(float64(i*i) * colorCoeff)
	}
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			r2 := x*x + y*y
			if r2 > r*r {
				continue
			}
			win.dx = append(win.dx, x)
			win.dy = append(win.dy, y)
			win.weight = append(win.weight, math.Exp(float64(r2)*spaceCoeff))
		}
	}
	return win
}

// BilateralGray smooths while keeping edges: each neighbor is weighted by
// spatial distance and by intensity difference.
func BilateralGray(g *image.Gray, d int, sigmaColor, sigmaSpace float64) (*image.Gray, error) {
	if err := validateBilateral(d, sigmaColor, sigmaSpace); err != nil {
		return nil, err
	}
	win := newBilateralWindow(d, sigmaColor, sigmaSpace, 1)
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := int(g.Pix[y*g.Stride+x])
			var sum, wsum float64
			for k := range win.dx {
				sy := plane.Reflect101.Index(y+win.dy[k], h)
				sx := plane.Reflect101.Index(x+win.dx[k], w)
				v := int(g.Pix[sy*g.Stride+sx])
				diff := v - c
				if diff < 0 {
					diff = -diff
				}
				wt := win.weight[k] * win.color[diff]
				sum += float64(v) * wt
				wsum += wt
			}
			out.Pix[y*out.Stride+x] = plane.Saturate(sum / wsum)
		}
	}
	return out, nil
}

// Bilateral uses the L1 distance over R, G and B as the color difference.
func Bilateral(img *image.NRGBA, d int, sigmaColor, sigmaSpace float64) (*image.NRGBA, error) {
	if err := validateBilateral(d, sigmaColor, sigmaSpace); err != nil {
		return nil, err
	}
	win := newBilateralWindow(d, sigmaColor, sigmaSpace, 3)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*img.Stride + x*4
			c0, c1, c2 := int(img.Pix[o]), int(img.Pix[o+1]), int(img.Pix[o+2])
			var s0, s1, s2, wsum float64
			for k := range win.dx {
				sy := plane.Reflect101.Index(y+win.dy[k], h)
				sx := plane.Reflect101.Index(x+win.dx[k], w)
				n := sy*img.Stride + sx*4
				v0, v1, v2 := int(img.Pix[n]), int(img.Pix[n+1]), int(img.Pix[n+2])
				diff := absInt(v0-c0) + absInt(v1-c1) + absInt(v2-c2)
				wt := win.weight[k] * win.color[diff]
				s0 += float64(v0) * wt
				s1 += float64(v1) * wt
				s2 += float64(v2) * wt
				wsum += wt
			}
			dst := out.Pix[y*out.Stride+x*4:]
			dst[0] = plane.Saturate(s0 / wsum)
			dst[1] = plane.Saturate(s1 / wsum)
			dst[2] = plane.Saturate(s2 / wsum)
			dst[3] = img.Pix[o+3]
		}
	}
	return out, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
