// Package freq synthesizes centered frequency-domain masks and applies them
// through a forward and inverse 2-D FFT.
package freq

import (
	"fmt"
	"math"
	"strings"

	"github.com/chaos-io/cutout/imgerr"
)

type Kind int

const (
	LowPass Kind = iota
	HighPass
	BandPass
	ButterworthLowPass
)

var kindNames = []string{"lowpass", "highpass", "bandpass", "butterworth_lowpass"}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func Kinds() []Kind {
	return []Kind{LowPass, HighPass, BandPass, ButterworthLowPass}
}

func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, s := range kindNames {
		if s == name {
			return Kind(i), nil
		}
	}
	return 0, imgerr.Invalid("unknown frequency filter %q", name)
}

// Params selects a mask. Cutoffs are radii in frequency samples measured
// from the centered DC term.
type Params struct {
	Kind       Kind
	Cutoff     float64
	LowCutoff  float64
	HighCutoff float64
	Order      int
}

func DefaultParams(kind Kind) Params {
	return Params{Kind: kind, Cutoff: 30, LowCutoff: 20, HighCutoff: 60, Order: 2}
}

func (p Params) Validate() error {
	switch p.Kind {
	case LowPass, HighPass:
		if p.Cutoff <= 0 {
			return imgerr.Invalid("cutoff must be positive, got %g", p.Cutoff)
		}
	case BandPass:
		if p.LowCutoff < 0 || p.HighCutoff <= p.LowCutoff {
			return imgerr.Invalid("band needs 0 <= low < high, got %g..%g", p.LowCutoff, p.HighCutoff)
		}
	case ButterworthLowPass:
		if p.Cutoff <= 0 {
			return imgerr.Invalid("cutoff must be positive, got %g", p.Cutoff)
		}
		if p.Order < 1 || p.Order > 10 {
			return imgerr.Invalid("butterworth order must be in [1, 10], got %d", p.Order)
		}
	default:
		return imgerr.Invalid("unknown frequency filter %d", p.Kind)
	}
	return nil
}

// Mask is a real Height×Width array in [0,1], row-major, centered at
// (Height/2, Width/2).
type Mask struct {
	Width, Height int
	Values        []float64
}

func (m *Mask) At(row, col int) float64 {
	return m.Values[row*m.Width+col]
}

// NewMask builds the mask for an image of w×h pixels.
func NewMask(w, h int, p Params) (*Mask, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, imgerr.Degenerate("empty %dx%d frequency plane", w, h)
	}
	m := &Mask{Width: w, Height: h, Values: make([]float64, w*h)}
	crow, ccol := h/2, w/2
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			d := math.Hypot(float64(i-crow), float64(j-ccol))
			m.Values[i*w+j] = response(p, d)
		}
	}
	return m, nil
}

func response(p Params, d float64) float64 {
	switch p.Kind {
	case LowPass:
		if d <= p.Cutoff {
			return 1
		}
		return 0
	case HighPass:
		if d <= p.Cutoff {
			return 0
		}
		return 1
	case BandPass:
		if d >= p.LowCutoff && d <= p.HighCutoff {
			return 1
		}
		return 0
	default:
		return 1 / (1 + math.Pow(d/p.Cutoff, float64(2*p.Order)))
	}
}
