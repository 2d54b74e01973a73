// Package filter is the spatial filter bank. Every filter has a Gray entry
// point and an NRGBA entry point that leaves alpha untouched.
package filter

import (
	"fmt"
	"image"
	"strings"

	"github.com/chaos-io/cutout/imgerr"
)

type Kind int

const (
	KindMean Kind = iota
	KindMedian
	KindGaussian
	KindBilateral
	KindLaplacian
	KindUnsharp
	KindHighPass
)

var kindNames = []string{"mean", "median", "gaussian", "bilateral", "laplacian", "unsharp", "highpass"}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kinds lists the filters in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, s := range kindNames {
		if s == name {
			return Kind(i), nil
		}
	}
	return 0, imgerr.Invalid("unknown spatial filter %q", name)
}

const maxKernel = 31

// Params carries the union of the knobs used by Apply. Fields a kind does
// not use are ignored.
type Params struct {
	Kind       Kind
	KernelSize int
	Sigma      float64
	Diameter   int
	SigmaColor float64
	SigmaSpace float64
	Strength   float64
	Amount     float64
	Threshold  float64
}

// DefaultParams returns the parameters Apply uses for kind when the caller
// supplies nothing else.
func DefaultParams(kind Kind) Params {
	p := Params{
		Kind:       kind,
		KernelSize: 5,
		Sigma:      1,
		Diameter:   9,
		SigmaColor: 75,
		SigmaSpace: 75,
		Strength:   1,
		Amount:     1.5,
	}
	switch kind {
	case KindMean, KindMedian, KindHighPass:
		p.KernelSize = 3
	}
	return p
}

func (p Params) Validate() error {
	switch p.Kind {
	case KindMean, KindMedian, KindGaussian, KindHighPass:
		return imgerr.OddKernel("kernel_size", p.KernelSize, 1, maxKernel)
	case KindBilateral:
		return validateBilateral(p.Diameter, p.SigmaColor, p.SigmaSpace)
	case KindLaplacian:
		return validateStrength(p.Strength)
	case KindUnsharp:
		return p.unsharp().Validate()
	}
	return imgerr.Invalid("unknown spatial filter %d", p.Kind)
}

func (p Params) unsharp() UnsharpParams {
	return UnsharpParams{KernelSize: p.KernelSize, Sigma: p.Sigma, Amount: p.Amount, Threshold: p.Threshold}
}

// Apply dispatches to the filter named by p.Kind.
func Apply(img *image.NRGBA, p Params) (*image.NRGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Kind {
	case KindMean:
		return Mean(img, p.KernelSize)
	case KindMedian:
		return Median(img, p.KernelSize)
	case KindGaussian:
		return Gaussian(img, p.KernelSize, p.Sigma)
	case KindBilateral:
		return Bilateral(img, p.Diameter, p.SigmaColor, p.SigmaSpace)
	case KindLaplacian:
		return LaplacianSharpen(img, p.Strength)
	case KindUnsharp:
		return UnsharpMask(img, p.unsharp())
	default:
		return HighPass(img, p.KernelSize)
	}
}

// ApplyGray is Apply for single-channel input.
func ApplyGray(g *image.Gray, p Params) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Kind {
	case KindMean:
		return MeanGray(g, p.KernelSize)
	case KindMedian:
		return MedianGray(g, p.KernelSize)
	case KindGaussian:
		return GaussianGray(g, p.KernelSize, p.Sigma)
	case KindBilateral:
		return BilateralGray(g, p.Diameter, p.SigmaColor, p.SigmaSpace)
	case KindLaplacian:
		return LaplacianSharpenGray(g, p.Strength)
	case KindUnsharp:
		return UnsharpMaskGray(g, p.unsharp())
	default:
		return HighPassGray(g, p.KernelSize)
	}
}
