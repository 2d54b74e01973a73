package histogram

import (
	"context"
	"image"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

// MatchGray remaps src so its cumulative histogram follows ref's. Each level
// maps to the reference level with the nearest CDF value, the smaller level
// winning ties.
func MatchGray(src, ref *image.Gray) (*image.Gray, error) {
	if plane.Empty(src.Bounds()) || plane.Empty(ref.Bounds()) {
		return nil, imgerr.Degenerate("histogram matching needs non-empty source and reference")
	}
	srcCDF := cdf(src)
	refCDF := cdf(ref)
	var lut [256]uint8
	for i := range lut {
		best, bestD := 0, math.Inf(1)
		for j := range refCDF {
			if d := math.Abs(srcCDF[i] - refCDF[j]); d < bestD {
				best, bestD = j, d
			}
		}
		lut[i] = uint8(best)
	}
	return applyLUT(src, &lut), nil
}

// Match runs MatchGray on R, G and B concurrently. Alpha comes from src.
func Match(ctx context.Context, src, ref *image.NRGBA) (*image.NRGBA, error) {
	if plane.Empty(src.Bounds()) || plane.Empty(ref.Bounds()) {
		return nil, imgerr.Degenerate("histogram matching needs non-empty source and reference")
	}
	sc := plane.Split(src)
	rc := plane.Split(ref)
	var out [3]*image.Gray
	eg, ctx := errgroup.WithContext(ctx)
	for c := range out {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := MatchGray(sc[c], rc[c])
			if err != nil {
				return err
			}
			out[c] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return plane.Merge(out[0], out[1], out[2], sc[3]), nil
}

func cdf(g *image.Gray) [256]float64 {
	hist, total := histogram(g)
	var out [256]float64
	sum := 0
	for i, n := range hist {
		sum += n
		out[i] = float64(sum) / float64(total)
	}
	return out
}

func validateBrightnessContrast(brightness, contrast float64) error {
	if brightness < -100 || brightness > 100 {
		return imgerr.Invalid("brightness must be in [-100, 100], got %g", brightness)
	}
	if contrast < 0.5 || contrast > 3 {
		return imgerr.Invalid("contrast must be in [0.5, 3.0], got %g", contrast)
	}
	return nil
}

func brightnessContrastLUT(brightness, contrast float64) *[256]uint8 {
	var lut [256]uint8
	for i := range lut {
		lut[i] = plane.Saturate(contrast*float64(i) + brightness)
	}
	return &lut
}

// BrightnessContrastGray maps x to clip(round(contrast·x + brightness)).
func BrightnessContrastGray(g *image.Gray, brightness, contrast float64) (*image.Gray, error) {
	if err := validateBrightnessContrast(brightness, contrast); err != nil {
		return nil, err
	}
	return applyLUT(g, brightnessContrastLUT(brightness, contrast)), nil
}

func BrightnessContrast(img *image.NRGBA, brightness, contrast float64) (*image.NRGBA, error) {
	if err := validateBrightnessContrast(brightness, contrast); err != nil {
		return nil, err
	}
	lut := brightnessContrastLUT(brightness, contrast)
	return plane.MapRGB(img, func(g *image.Gray) *image.Gray { return applyLUT(g, lut) }), nil
}

func validateGamma(gamma float64) error {
	if !(gamma > 0) || gamma > 10 {
		return imgerr.Invalid("gamma must be in (0, 10], got %g", gamma)
	}
	return nil
}

func gammaLUT(gamma float64) *[256]uint8 {
	var lut [256]uint8
	inv := 1 / gamma
	for i := range lut {
		lut[i] = plane.Saturate(255 * math.Pow(float64(i)/255, inv))
	}
	return &lut
}

// GammaGray applies out = 255·(x/255)^(1/gamma). Gamma below 1 darkens.
func GammaGray(g *image.Gray, gamma float64) (*image.Gray, error) {
	if err := validateGamma(gamma); err != nil {
		return nil, err
	}
	return applyLUT(g, gammaLUT(gamma)), nil
}

func Gamma(img *image.NRGBA, gamma float64) (*image.NRGBA, error) {
	if err := validateGamma(gamma); err != nil {
		return nil, err
	}
	lut := gammaLUT(gamma)
	return plane.MapRGB(img, func(g *image.Gray) *image.Gray { return applyLUT(g, lut) }), nil
}
