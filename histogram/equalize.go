// Package histogram implements intensity remapping: equalization, CLAHE,
// histogram matching and point transforms.
package histogram

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
	Global Method = iota
	Adaptive
	CLAHEMethod
)

var methodNames = []string{"global", "adaptive", "clahe"}

func (m Method) String() string {
	if int(m) >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

func Methods() []Method {
	return []Method{Global, Adaptive, CLAHEMethod}
}

func ParseMethod(name string) (Method, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, s := range methodNames {
		if s == name {
			return Method(i), nil
		}
	}
	return 0, imgerr.Invalid("unknown equalization method %q", name)
}

// clipLimit is the CLAHE clip limit each method uses.
func (m Method) clipLimit() float64 {
	if m == CLAHEMethod {
		return 3.0
	}
	return 2.0
}

const defaultGrid = 8

// EqualizeGray equalizes a single channel.
func EqualizeGray(g *image.Gray, m Method) (*image.Gray, error) {
	switch m {
	case Global:
		return equalizeHist(g), nil
	case Adaptive, CLAHEMethod:
		return CLAHE(g, CLAHEParams{ClipLimit: m.clipLimit(), Grid: defaultGrid})
	}
	return nil, imgerr.Invalid("unknown equalization method %d", m)
}

// Equalize works on the luma of a YCrCb conversion and keeps chroma and
// alpha as they were.
func Equalize(img *image.NRGBA, m Method) (*image.NRGBA, error) {
	ycc := plane.ToYCrCb(img)
	y, err := EqualizeGray(ycc.Y, m)
	if err != nil {
		return nil, err
	}
	ycc.Y = y
	return ycc.NRGBA(), nil
}

func histogram(g *image.Gray) (hist [256]int, total int) {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			hist[v]++
		}
	}
	return hist, w * h
}

func equalizeHist(g *image.Gray) *image.Gray {
	hist, total := histogram(g)
	var lut [256]uint8
	first := 0
	for first < 255 && hist[first] == 0 {
		first++
	}
	if total == 0 || hist[first] == total {
		for i := range lut {
			lut[i] = uint8(first)
		}
		return applyLUT(g, &lut)
	}
	scale := 255 / float64(total-hist[first])
	sum := 0
	for i := first + 1; i < 256; i++ {
		sum += hist[i]
		lut[i] = plane.Saturate(float64(sum) * scale)
	}
	return applyLUT(g, &lut)
}

func applyLUT(g *image.Gray, lut *[256]uint8) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*out.Stride:]
		for x, v := range src {
			dst[x] = lut[v]
		}
	}
	return out
}

// CLAHEParams configures contrast-limited adaptive equalization over a
// Grid×Grid tile layout.
type CLAHEParams struct {
	ClipLimit float64
	Grid      int
}

func (p CLAHEParams) Validate() error {
	if p.ClipLimit < 0 || math.IsNaN(p.ClipLimit) {
		return imgerr.Invalid("clip limit must be non-negative, got %g", p.ClipLimit)
	}
	if p.Grid < 1 || p.Grid > 64 {
		return imgerr.Invalid("tile grid must be in [1, 64], got %d", p.Grid)
	}
	return nil
}

// CLAHE equalizes each tile with a clipped histogram and blends the four
// nearest tile mappings bilinearly. Images not divisible by the grid are
// padded with a reflect-101 border for the tile statistics.
func CLAHE(g *image.Gray, p CLAHEParams) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return image.NewGray(image.Rect(0, 0, w, h)), nil
	}
	n := p.Grid
	tw := (w + n - 1) / n
	th := (h + n - 1) / n
	area := tw * th

	clip := 0
	if p.ClipLimit > 0 {
		clip = max(int(p.ClipLimit*float64(area)/256), 1)
	}
	lutScale := 255 / float64(area)

	luts := make([][256]uint8, n*n)
	for ty := 0; ty < n; ty++ {
		for tx := 0; tx < n; tx++ {
			var hist [256]int
			for y := ty * th; y < (ty+1)*th; y++ {
				sy := plane.Reflect101.Index(y, h)
				for x := tx * tw; x < (tx+1)*tw; x++ {
					hist[g.Pix[sy*g.Stride+plane.Reflect101.Index(x, w)]]++
				}
			}
			if clip > 0 {
				clipHistogram(&hist, clip)
			}
			lut := &luts[ty*n+tx]
			sum := 0
			for i := range hist {
				sum += hist[i]
				lut[i] = plane.Saturate(float64(sum) * lutScale)
			}
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		tyf := float64(y)/float64(th) - 0.5
		ty1 := int(math.Floor(tyf))
		ya := tyf - float64(ty1)
		ty2 := min(ty1+1, n-1)
		ty1 = max(ty1, 0)
		for x := 0; x < w; x++ {
			txf := float64(x)/float64(tw) - 0.5
			tx1 := int(math.Floor(txf))
			xa := txf - float64(tx1)
			tx2 := min(tx1+1, n-1)
			tx1 = max(tx1, 0)

			v := g.Pix[y*g.Stride+x]
			top := float64(luts[ty1*n+tx1][v])*(1-xa) + float64(luts[ty1*n+tx2][v])*xa
			bot := float64(luts[ty2*n+tx1][v])*(1-xa) + float64(luts[ty2*n+tx2][v])*xa
			out.Pix[y*out.Stride+x] = plane.Saturate(top*(1-ya) + bot*ya)
		}
	}
	return out, nil
}

// clipHistogram caps every bin at clip and spreads the excess evenly, with
// the remainder handed out at a regular stride from bin 0.
func clipHistogram(hist *[256]int, clip int) {
	clipped := 0
	for i := range hist {
		if hist[i] > clip {
			clipped += hist[i] - clip
			hist[i] = clip
		}
	}
	batch := clipped / 256
	residual := clipped - batch*256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(256/residual, 1)
		for i := 0; i < 256 && residual > 0; i, residual = i+step, residual-1 {
			hist[i]++
		}
	}
}
