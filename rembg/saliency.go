package rembg

import (
	"image"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/morph"
	"github.com/chaos-io/cutout/plane"
)

// SaliencyMap is the model's per-pixel subject likelihood, row-major.
type SaliencyMap struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Values []float32 `json:"data"`
}

func (m *SaliencyMap) validate() error {
	if m == nil || m.Width < 1 || m.Height < 1 {
		return imgerr.Degenerate("empty saliency map")
	}
	if len(m.Values) != m.Width*m.Height {
		return imgerr.Failure("saliency map holds %d values for %dx%d", len(m.Values), m.Width, m.Height)
	}
	return nil
}

// ThresholdParams picks the binarization cut. Values above Floor form the
// population whose Percentile is taken; the result is clamped to [Min, Max].
type ThresholdParams struct {
	Floor      float64 `json:"floor" mapstructure:"floor"`
	Percentile float64 `json:"percentile" mapstructure:"percentile"`
	Min        float64 `json:"min" mapstructure:"min"`
	Max        float64 `json:"max" mapstructure:"max"`
}

func DefaultThresholdParams() ThresholdParams {
	return ThresholdParams{Floor: 0.1, Percentile: 20, Min: 0.15, Max: 0.35}
}

func (p ThresholdParams) Validate() error {
	if p.Floor < 0 || p.Floor >= 1 {
		return imgerr.Invalid("saliency floor must be in [0, 1), got %g", p.Floor)
	}
	if p.Percentile < 0 || p.Percentile > 100 {
		return imgerr.Invalid("saliency percentile must be in [0, 100], got %g", p.Percentile)
	}
	if p.Min < 0 || p.Max > 1 || p.Min > p.Max {
		return imgerr.Invalid("saliency clamp [%g, %g] must be an ordered range inside [0, 1]", p.Min, p.Max)
	}
	return nil
}

// Threshold returns the cut for values already scaled to [0,1]. With no value
// above the floor the upper clamp is used.
func (p ThresholdParams) Threshold(values []float64) float64 {
	above := make([]float64, 0, len(values))
	for _, v := range values {
		if v > p.Floor {
			above = append(above, v)
		}
	}
	if len(above) == 0 {
		return p.Max
	}
	slices.Sort(above)
	q := stat.Quantile(p.Percentile/100, stat.LinInterp, above, nil)
	return math.Max(p.Min, math.Min(q, p.Max))
}

// Binarize min-max normalizes the map and sets pixels above the adaptive
// threshold to 255. A flat map has no subject and yields an all-zero mask.
func Binarize(m *SaliencyMap, p ThresholdParams) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	lo, hi := float64(m.Values[0]), float64(m.Values[0])
	for _, v := range m.Values {
		lo = math.Min(lo, float64(v))
		hi = math.Max(hi, float64(v))
	}
	if !(hi > lo) {
		return out, nil
	}
	values := make([]float64, len(m.Values))
	for i, v := range m.Values {
		values[i] = (float64(v) - lo) / (hi - lo)
	}
	th := p.Threshold(values)

	for i, v := range values {
		if v > th {
			out.Pix[i] = 255
		}
	}
	return out, nil
}

// featherSigma is the feather width of CleanMask at DefaultInputSize. Other
// mask sizes scale it proportionally.
const featherSigma = 4.0

// CleanMask removes specks from a binary mask, fills enclosed holes, smooths
// and grows the outline, then feathers it with a Gaussian.
func CleanMask(bin *image.Gray) *image.Gray {
	cross, _ := morph.NewElement(morph.Cross, 3)
	m := morph.Open(bin, cross, 1)
	m = fillHoles(m)
	m = morph.Close(m, cross, 2)
	m = morph.Dilate(m, cross, 3)
	return plane.GaussianBlur(plane.FromGray(m), 0, FeatherSigma(m.Bounds().Size()), plane.Reflect101).Gray()
}

// FeatherSigma returns the CleanMask blur sigma for a mask of size sz.
func FeatherSigma(sz image.Point) float64 {
	side := max(sz.X, sz.Y)
	return math.Max(featherSigma*float64(side)/DefaultInputSize, 0.5)
}

// fillHoles sets every zero pixel not 4-connected to the border to 255.
func fillHoles(bin *image.Gray) *image.Gray {
	w, h := bin.Bounds().Dx(), bin.Bounds().Dy()
	out := plane.CloneGray(bin)
	if w == 0 || h == 0 {
		return out
	}
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))
	push := func(x, y int) {
		i := y*w + x
		if outside[i] || out.Pix[y*out.Stride+x] != 0 {
			return
		}
		outside[i] = true
		stack = append(stack, i)
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !outside[y*w+x] {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}
