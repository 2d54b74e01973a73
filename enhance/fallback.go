// Package enhance upscales and polishes a cut-out, using a super-resolution
// model when one is configured and a classical pipeline otherwise.
package enhance

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/chaos-io/cutout/filter"
	"github.com/chaos-io/cutout/histogram"
	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

const scale = 2

var (
	// unsharp with a σ=2 Gaussian: 1.5·x − 0.5·blur
	fallbackUnsharp = filter.UnsharpParams{KernelSize: 13, Sigma: 2, Amount: 0.5}
	// 3×3 smoothing kernel whose blend drives the sharpness boost
	smoothKernel = [9]float64{
		1, 1, 1,
		1, 5, 1,
		1, 1, 1,
	}
)

const (
	sharpnessFactor = 1.2
	saturationBoost = 5.0
	nudgeContrast   = 1.1
	nudgeBrightness = 5.0
	bilateralDiam   = 9
	bilateralSigma  = 75.0
)

// Fallback doubles the size of img and restores detail with classical
// filters. Alpha is resampled on its own and reattached untouched.
func Fallback(img *image.NRGBA) (*image.NRGBA, error) {
	if plane.Empty(img.Bounds()) {
		return nil, imgerr.Degenerate("cannot enhance an empty image")
	}
	rgb, alpha := upscaleLanczos(img)

	out, err := filter.UnsharpMask(rgb, fallbackUnsharp)
	if err != nil {
		return nil, err
	}
	if out, err = filter.Bilateral(out, bilateralDiam, bilateralSigma, bilateralSigma); err != nil {
		return nil, err
	}
	if out, err = histogram.Equalize(out, histogram.Adaptive); err != nil {
		return nil, err
	}
	if out, err = histogram.BrightnessContrast(out, nudgeBrightness, nudgeContrast); err != nil {
		return nil, err
	}
	out = sharpen(out, sharpnessFactor)
	out = imaging.AdjustSaturation(out, saturationBoost)

	ch := plane.Split(out)
	return plane.Merge(ch[0], ch[1], ch[2], alpha), nil
}

// Lanczos is the plain 2× resample used when nothing else works.
func Lanczos(img *image.NRGBA) (*image.NRGBA, error) {
	if plane.Empty(img.Bounds()) {
		return nil, imgerr.Degenerate("cannot enhance an empty image")
	}
	rgb, alpha := upscaleLanczos(img)
	ch := plane.Split(rgb)
	return plane.Merge(ch[0], ch[1], ch[2], alpha), nil
}

// upscaleLanczos resamples the opaque color and the alpha plane separately
// so transparent pixels do not bleed into the subject.
func upscaleLanczos(img *image.NRGBA) (*image.NRGBA, *image.Gray) {
	w, h := uint(img.Bounds().Dx()*scale), uint(img.Bounds().Dy()*scale)
	ch := plane.Split(img)
	opaque := plane.Merge(ch[0], ch[1], ch[2], nil)
	rgb := plane.ToNRGBA(resize.Resize(w, h, opaque, resize.Lanczos3))
	alpha := plane.ToGray(resize.Resize(w, h, ch[3], resize.Lanczos3))
	return rgb, alpha
}

// sharpen blends img away from its smoothed copy: factor 1 is identity and
// larger factors sharpen.
func sharpen(img *image.NRGBA, factor float64) *image.NRGBA {
	smooth := imaging.Convolve3x3(img, smoothKernel, &imaging.ConvolveOptions{Normalize: true})
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		deg := smooth.Pix[y*smooth.Stride:]
		dst := out.Pix[y*out.Stride:]
		for i := 0; i < len(src); i += 4 {
			for c := 0; c < 3; c++ {
				dst[i+c] = plane.Saturate(float64(deg[i+c]) + factor*(float64(src[i+c])-float64(deg[i+c])))
			}
			dst[i+3] = src[i+3]
		}
	}
	return out
}
