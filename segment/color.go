package segment

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/chaos-io/cutout/imgerr"
)

type ColorSpace int

const (
	SpaceHSV ColorSpace = iota
	SpaceRGB
)

func (s ColorSpace) String() string {
	switch s {
	case SpaceHSV:
		return "hsv"
	case SpaceRGB:
		return "rgb"
	}
	return fmt.Sprintf("ColorSpace(%d)", int(s))
}

func ParseColorSpace(name string) (ColorSpace, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hsv":
		return SpaceHSV, nil
	case "rgb":
		return SpaceRGB, nil
	}
	return 0, imgerr.Invalid("unknown color space %q", name)
}

// ColorParams bounds a box in the chosen space. HSV uses the 8-bit scale
// H 0..179, S and V 0..255. Both bounds are inclusive.
type ColorParams struct {
	Space        ColorSpace
	Lower, Upper [3]int
}

func DefaultColorParams(space ColorSpace) ColorParams {
	if space == SpaceRGB {
		return ColorParams{Space: SpaceRGB, Lower: [3]int{0, 0, 0}, Upper: [3]int{255, 255, 255}}
	}
	return ColorParams{Space: SpaceHSV, Lower: [3]int{0, 50, 50}, Upper: [3]int{180, 255, 255}}
}

func (p ColorParams) Validate() error {
	if p.Space != SpaceHSV && p.Space != SpaceRGB {
		return imgerr.Invalid("unknown color space %d", p.Space)
	}
	for c := 0; c < 3; c++ {
		if p.Lower[c] < 0 || p.Upper[c] > 255 {
			return imgerr.Invalid("bounds must lie in [0, 255], got %v..%v", p.Lower, p.Upper)
		}
		if p.Lower[c] > p.Upper[c] {
			return imgerr.Invalid("lower bound %v exceeds upper bound %v", p.Lower, p.Upper)
		}
	}
	return nil
}

// ColorRange marks pixels whose converted color lies inside the box.
func ColorRange(img *image.NRGBA, p ColorParams) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			px := [3]int{int(src[x*4]), int(src[x*4+1]), int(src[x*4+2])}
			if p.Space == SpaceHSV {
				px = HSV8(src[x*4], src[x*4+1], src[x*4+2])
			}
			if inside(px, p.Lower, p.Upper) {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out, nil
}

// HSV8 converts 8-bit RGB to H in [0,180), S and V in [0,255].
func HSV8(r, g, b uint8) [3]int {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	hue, s, v := c.Hsv()
	return [3]int{
		int(math.Round(hue/2)) % 180,
		int(math.Round(s * 255)),
		int(math.Round(v * 255)),
	}
}

func inside(px, lo, hi [3]int) bool {
	for c := 0; c < 3; c++ {
		if px[c] < lo[c] || px[c] > hi[c] {
			return false
		}
	}
	return true
}
