package filter

import (
	"image"
	"math"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

func validateStrength(s float64) error {
	if s < 0 || s > 10 || math.IsNaN(s) {
		return imgerr.Invalid("sharpening strength must be in [0, 10], got %g", s)
	}
	return nil
}

// laplacianResponse is |Laplacian(g)| with the 4-neighbor aperture, saturated.
func laplacianResponse(g *image.Gray) *image.Gray {
	return plane.Laplacian(plane.FromGray(g), 1, plane.Reflect101).AbsGray()
}

func LaplacianSharpenGray(g *image.Gray, strength float64) (*image.Gray, error) {
	if err := validateStrength(strength); err != nil {
		return nil, err
	}
	lap := laplacianResponse(g)
	out := plane.CloneGray(g)
	for i, v := range out.Pix {
		out.Pix[i] = truncate(float64(v) + strength*float64(lap.Pix[i]))
	}
	return out, nil
}

// LaplacianSharpen adds the luma edge response to every color channel.
func LaplacianSharpen(img *image.NRGBA, strength float64) (*image.NRGBA, error) {
	if err := validateStrength(strength); err != nil {
		return nil, err
	}
	lap := laplacianResponse(plane.Luma(img))
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			edge := strength * float64(lap.Pix[y*lap.Stride+x])
			for c := 0; c < 3; c++ {
				dst[x*4+c] = truncate(float64(src[x*4+c]) + edge)
			}
			dst[x*4+3] = src[x*4+3]
		}
	}
	return out, nil
}

func truncate(v float64) uint8 {
	return plane.Saturate(math.Floor(v))
}

type UnsharpParams struct {
	KernelSize int
	Sigma      float64
	Amount     float64
	// Threshold keeps the original pixel where |x - blur| is below it.
	Threshold float64
}

func DefaultUnsharpParams() UnsharpParams {
	return UnsharpParams{KernelSize: 5, Sigma: 1, Amount: 1.5}
}

func (p UnsharpParams) Validate() error {
	if err := imgerr.OddKernel("kernel_size", p.KernelSize, 1, maxKernel); err != nil {
		return err
	}
	if p.Amount < 0 || p.Amount > 10 {
		return imgerr.Invalid("unsharp amount must be in [0, 10], got %g", p.Amount)
	}
	if p.Threshold < 0 || p.Threshold > 255 {
		return imgerr.Invalid("unsharp threshold must be in [0, 255], got %g", p.Threshold)
	}
	return nil
}

func UnsharpMaskGray(g *image.Gray, p UnsharpParams) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return unsharp(g, p), nil
}

func UnsharpMask(img *image.NRGBA, p UnsharpParams) (*image.NRGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return plane.MapRGB(img, func(g *image.Gray) *image.Gray { return unsharp(g, p) }), nil
}

// unsharp computes (1+amount)·x − amount·blur(x).
func unsharp(g *image.Gray, p UnsharpParams) *image.Gray {
	src := plane.CloneGray(g)
	blur := plane.GaussianBlur(plane.FromGray(src), p.KernelSize, p.Sigma, plane.Reflect101).Gray()
	out := image.NewGray(src.Bounds())
	for i, v := range src.Pix {
		x, b := float64(v), float64(blur.Pix[i])
		if p.Threshold > 0 && math.Abs(x-b) < p.Threshold {
			out.Pix[i] = v
			continue
		}
		out.Pix[i] = plane.Saturate((1+p.Amount)*x - p.Amount*b)
	}
	return out
}

// HighPassGray subtracts a Gaussian low-pass and stretches the residue to [0,255].
func HighPassGray(g *image.Gray, ksize int) (*image.Gray, error) {
	if err := imgerr.OddKernel("kernel_size", ksize, 1, maxKernel); err != nil {
		return nil, err
	}
	return highPassResidue(g, ksize).Normalize(), nil
}

// HighPass normalizes R, G and B with one shared range.
func HighPass(img *image.NRGBA, ksize int) (*image.NRGBA, error) {
	if err := imgerr.OddKernel("kernel_size", ksize, 1, maxKernel); err != nil {
		return nil, err
	}
	ch := plane.Split(img)
	var res [3]*plane.Plane
	lo, hi := math.Inf(1), math.Inf(-1)
	for c := range res {
		res[c] = highPassResidue(ch[c], ksize)
		l, u := res[c].MinMax()
		lo, hi = math.Min(lo, l), math.Max(hi, u)
	}
	return plane.Merge(
		plane.NormalizeRange(res[0], lo, hi),
		plane.NormalizeRange(res[1], lo, hi),
		plane.NormalizeRange(res[2], lo, hi),
		ch[3],
	), nil
}

// highPassResidue is the saturating difference x − gauss(x), kept as a plane.
func highPassResidue(g *image.Gray, ksize int) *plane.Plane {
	src := plane.FromGray(g)
	low := plane.GaussianBlur(src, ksize, 0, plane.Reflect101).Gray()
	out := plane.New(src.Width, src.Height)
	for i, v := range src.Pix {
		out.Pix[i] = math.Max(v-float64(low.Pix[i]), 0)
	}
	return out
}
