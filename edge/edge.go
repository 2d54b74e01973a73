// Package edge implements gradient and second-derivative edge detectors.
// Detectors work on luma; NRGBA wrappers convert first.
package edge

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

type Method int

const (
	MethodSobel Method = iota
	MethodPrewitt
	MethodCanny
	MethodLaplacian
)

var methodNames = []string{"sobel", "prewitt", "canny", "laplacian"}

func (m Method) String() string {
	if int(m) >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

func Methods() []Method {
	return []Method{MethodSobel, MethodPrewitt, MethodCanny, MethodLaplacian}
}

func ParseMethod(name string) (Method, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, s := range methodNames {
		if s == name {
			return Method(i), nil
		}
	}
	return 0, imgerr.Invalid("unknown edge detector %q", name)
}

// Params drives Detect. KernelSize is the Sobel/Laplacian aperture and the
// Canny aperture; Low and High are the Canny hysteresis thresholds.
type Params struct {
	Method     Method
	KernelSize int
	Low, High  float64
}

func DefaultParams(m Method) Params {
	return Params{Method: m, KernelSize: 3, Low: 50, High: 150}
}

func (p Params) Validate() error {
	switch p.Method {
	case MethodSobel:
		return validateSobel(p.KernelSize)
	case MethodPrewitt:
		return nil
	case MethodCanny:
		return validateCanny(p.Low, p.High, p.KernelSize)
	case MethodLaplacian:
		return imgerr.OddKernel("kernel_size", p.KernelSize, 1, 7)
	}
	return imgerr.Invalid("unknown edge detector %d", p.Method)
}

// DetectGray runs the detector named by p.Method.
func DetectGray(g *image.Gray, p Params) (*image.Gray, error) {
	switch p.Method {
	case MethodSobel:
		return SobelGray(g, p.KernelSize)
	case MethodPrewitt:
		return PrewittGray(g), nil
	case MethodCanny:
		return CannyGray(g, p.Low, p.High, p.KernelSize)
	case MethodLaplacian:
		return LaplacianGray(g, p.KernelSize)
	}
	return nil, imgerr.Invalid("unknown edge detector %d", p.Method)
}

func Detect(img image.Image, p Params) (*image.Gray, error) {
	return DetectGray(plane.ToGray(img), p)
}

func validateSobel(ksize int) error {
	switch ksize {
	case 1, 3, 5, 7:
		return nil
	}
	return imgerr.Invalid("sobel kernel size must be 1, 3, 5 or 7, got %d", ksize)
}

// SobelGray returns the normalized Euclidean gradient magnitude.
func SobelGray(g *image.Gray, ksize int) (*image.Gray, error) {
	if err := validateSobel(ksize); err != nil {
		return nil, err
	}
	p := plane.FromGray(g)
	gx := plane.Sobel(p, 1, 0, ksize, plane.Reflect101)
	gy := plane.Sobel(p, 0, 1, ksize, plane.Reflect101)
	return magnitude(gx, gy).Normalize(), nil
}

func Sobel(img image.Image, ksize int) (*image.Gray, error) {
	return SobelGray(plane.ToGray(img), ksize)
}

var (
	prewittX = [][]float64{{1, 0, -1}, {1, 0, -1}, {1, 0, -1}}
	prewittY = [][]float64{{1, 1, 1}, {0, 0, 0}, {-1, -1, -1}}
)

// PrewittGray returns the normalized Euclidean magnitude of the 3×3 Prewitt pair.
func PrewittGray(g *image.Gray) *image.Gray {
	p := plane.FromGray(g)
	gx := plane.Convolve(p, prewittX, plane.Reflect101)
	gy := plane.Convolve(p, prewittY, plane.Reflect101)
	return magnitude(gx, gy).Normalize()
}

func Prewitt(img image.Image) *image.Gray {
	return PrewittGray(plane.ToGray(img))
}

// LaplacianGray returns |Laplacian| saturated to [0,255].
func LaplacianGray(g *image.Gray, ksize int) (*image.Gray, error) {
	if err := imgerr.OddKernel("kernel_size", ksize, 1, 7); err != nil {
		return nil, err
	}
	return plane.Laplacian(plane.FromGray(g), ksize, plane.Reflect101).AbsGray(), nil
}

func Laplacian(img image.Image, ksize int) (*image.Gray, error) {
	return LaplacianGray(plane.ToGray(img), ksize)
}

func magnitude(gx, gy *plane.Plane) *plane.Plane {
	out := plane.New(gx.Width, gx.Height)
	for i := range out.Pix {
		out.Pix[i] = math.Hypot(gx.Pix[i], gy.Pix[i])
	}
	return out
}

// Compare runs every detector with its default parameters.
func Compare(img image.Image) (map[Method]*image.Gray, error) {
	g := plane.ToGray(img)
	out := make(map[Method]*image.Gray, len(methodNames))
	for _, m := range Methods() {
		res, err := DetectGray(g, DefaultParams(m))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		out[m] = res
	}
	return out, nil
}
