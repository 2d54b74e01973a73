// Package segment splits images into regions: global and local thresholds,
// region growing, marker watershed, color ranges and k-means clustering.
package segment

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

// Otsu binarizes with the threshold that maximizes between-class variance.
// When a range of thresholds ties, the midpoint of the first such range is
// used. Pixels strictly above the threshold become 255.
func Otsu(g *image.Gray) (*image.Gray, uint8) {
	t := OtsuThreshold(g)
	return binarize(g, func(v uint8) bool { return v > t }), t
}

// OtsuThreshold computes the threshold Otsu would apply.
func OtsuThreshold(g *image.Gray) uint8 {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}
	var hist [256]float64
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			hist[v]++
		}
	}
	total := float64(w * h)
	var mu float64
	for i, n := range hist {
		mu += float64(i) * n / total
	}

	var sigma [256]float64
	var q1, mu1 float64
	maxSigma := 0.0
	for i := 0; i < 256; i++ {
		p := hist[i] / total
		q1next := q1 + p
		if q1next > 0 {
			mu1 = (mu1*q1 + float64(i)*p) / q1next
		}
		q1 = q1next
		q2 := 1 - q1
		if q1 < 1e-12 || q2 < 1e-12 {
			continue
		}
		mu2 := (mu - q1*mu1) / q2
		sigma[i] = q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		maxSigma = math.Max(maxSigma, sigma[i])
	}
	if maxSigma == 0 {
		return 0
	}

	tol := maxSigma * 1e-9
	start := -1
	end := -1
	for i := 0; i < 256; i++ {
		near := maxSigma-sigma[i] <= tol
		if start < 0 {
			if near {
				start, end = i, i
			}
			continue
		}
		if !near {
			break
		}
		end = i
	}
	return uint8((start + end) / 2)
}

func binarize(g *image.Gray, on func(uint8) bool) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if on(g.Pix[y*g.Stride+x]) {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

type AdaptiveMethod int

const (
	AdaptiveGaussian AdaptiveMethod = iota
	AdaptiveMean
)

func (m AdaptiveMethod) String() string {
	switch m {
	case AdaptiveGaussian:
		return "gaussian"
	case AdaptiveMean:
		return "mean"
	}
	return fmt.Sprintf("AdaptiveMethod(%d)", int(m))
}

func ParseAdaptiveMethod(name string) (AdaptiveMethod, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gaussian":
		return AdaptiveGaussian, nil
	case "mean":
		return AdaptiveMean, nil
	}
	return 0, imgerr.Invalid("unknown adaptive method %q", name)
}

type AdaptiveParams struct {
	Method    AdaptiveMethod
	BlockSize int
	C         float64
}

func DefaultAdaptiveParams() AdaptiveParams {
	return AdaptiveParams{Method: AdaptiveGaussian, BlockSize: 11, C: 2}
}

func (p AdaptiveParams) Validate() error {
	if p.Method != AdaptiveGaussian && p.Method != AdaptiveMean {
		return imgerr.Invalid("unknown adaptive method %d", p.Method)
	}
	return imgerr.OddKernel("block_size", p.BlockSize, 3, 255)
}

// Adaptive compares each pixel against its neighborhood mean minus C. The
// local mean is rounded to 8 bits with a replicated border.
func Adaptive(g *image.Gray, p AdaptiveParams) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	src := plane.FromGray(g)
	var local *plane.Plane
	if p.Method == AdaptiveMean {
		local = plane.BoxBlur(src, p.BlockSize, plane.Replicate)
	} else {
		local = plane.GaussianBlur(src, p.BlockSize, 0, plane.Replicate)
	}
	mean := local.Gray()
	delta := -math.Ceil(p.C)
	out := image.NewGray(image.Rect(0, 0, src.Width, src.Height))
	for i, v := range src.Pix {
		if v-float64(mean.Pix[i]) > delta {
			out.Pix[i] = 255
		}
	}
	return out, nil
}
