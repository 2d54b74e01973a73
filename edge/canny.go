package edge

import (
	"image"
	"math"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

func validateCanny(low, high float64, aperture int) error {
	switch aperture {
	case 3, 5, 7:
	default:
		return imgerr.Invalid("canny aperture must be 3, 5 or 7, got %d", aperture)
	}
	if low < 0 || high < 0 {
		return imgerr.Invalid("canny thresholds must be non-negative, got %g/%g", low, high)
	}
	return nil
}

const (
	candidate = 1
	strong    = 2
)

// tan(22.5°) and tan(67.5°) split gradient directions into four sectors.
var (
	tan22 = math.Tan(math.Pi / 8)
	tan67 = math.Tan(3 * math.Pi / 8)
)

// CannyGray detects edges with L1 gradient magnitude, non-maximum
// suppression and 8-connected hysteresis between low and high. Thresholds
// are swapped when given out of order. Output is binary {0,255}.
func CannyGray(g *image.Gray, low, high float64, aperture int) (*image.Gray, error) {
	if err := validateCanny(low, high, aperture); err != nil {
		return nil, err
	}
	if low > high {
		low, high = high, low
	}
	p := plane.FromGray(g)
	w, h := p.Width, p.Height
	dx := plane.Sobel(p, 1, 0, aperture, plane.Replicate)
	dy := plane.Sobel(p, 0, 1, aperture, plane.Replicate)

	mag := plane.New(w, h)
	for i := range mag.Pix {
		mag.Pix[i] = math.Abs(dx.Pix[i]) + math.Abs(dy.Pix[i])
	}
	at := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag.Pix[y*w+x]
	}

	state := make([]uint8, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag.Pix[i]
			if m <= low {
				continue
			}
			gx, gy := dx.Pix[i], dy.Pix[i]
			ax, ay := math.Abs(gx), math.Abs(gy)
			var peak bool
			switch {
			case ay < ax*tan22:
				peak = m > at(x-1, y) && m >= at(x+1, y)
			case ay > ax*tan67:
				peak = m > at(x, y-1) && m >= at(x, y+1)
			default:
				s := 1
				if (gx < 0) != (gy < 0) {
					s = -1
				}
				peak = m > at(x-s, y-1) && m > at(x+s, y+1)
			}
			if !peak {
				continue
			}
			if m > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = candidate
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				if j := ny*w + nx; state[j] == candidate {
					state[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for i, s := range state {
		if s == strong {
			out.Pix[i] = 255
		}
	}
	return out, nil
}

func Canny(img image.Image, low, high float64, aperture int) (*image.Gray, error) {
	return CannyGray(plane.ToGray(img), low, high, aperture)
}
