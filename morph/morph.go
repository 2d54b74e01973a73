package morph

import (
	"fmt"
	"image"
	"strings"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

// Op names a morphological operation.
type Op int

const (
	OpDilate Op = iota
	OpErode
	OpOpen
	OpClose
	OpGradient
	OpTopHat
	OpBlackHat
)

var opNames = map[Op]string{
	OpDilate:   "dilate",
	OpErode:    "erode",
	OpOpen:     "opening",
	OpClose:    "closing",
	OpGradient: "gradient",
	OpTopHat:   "tophat",
	OpBlackHat: "blackhat",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Ops lists every operation in declaration order.
func Ops() []Op {
	return []Op{OpDilate, OpErode, OpOpen, OpClose, OpGradient, OpTopHat, OpBlackHat}
}

// ParseOp maps a name such as "opening" to its Op.
func ParseOp(name string) (Op, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for op, s := range opNames {
		if s == name {
			return op, nil
		}
	}
	return 0, imgerr.Invalid("unknown morphological operation %q", name)
}

func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Op) UnmarshalText(text []byte) error {
	op, err := ParseOp(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Step is one entry of a sequence.
type Step struct {
	Op         Op  `json:"type"`
	KernelSize int `json:"kernel_size"`
	Iterations int `json:"iterations"`
}

// Dilate replaces every pixel with the maximum under the element.
func Dilate(src *image.Gray, e *Element, iterations int) *image.Gray {
	return repeat(src, e, iterations, dilateOnce)
}

// Erode replaces every pixel with the minimum under the element.
func Erode(src *image.Gray, e *Element, iterations int) *image.Gray {
	return repeat(src, e, iterations, erodeOnce)
}

func Open(src *image.Gray, e *Element, iterations int) *image.Gray {
	return Dilate(Erode(src, e, iterations), e, iterations)
}

func Close(src *image.Gray, e *Element, iterations int) *image.Gray {
	return Erode(Dilate(src, e, iterations), e, iterations)
}

// Gradient is dilate − erode, outlining object boundaries.
func Gradient(src *image.Gray, e *Element) *image.Gray {
	return subtract(Dilate(src, e, 1), Erode(src, e, 1))
}

// TopHat keeps bright structures smaller than the element.
func TopHat(src *image.Gray, e *Element) *image.Gray {
	return subtract(src, Open(src, e, 1))
}

// BlackHat keeps dark structures smaller than the element.
func BlackHat(src *image.Gray, e *Element) *image.Gray {
	return subtract(Close(src, e, 1), src)
}

// Apply runs op with an elliptical element of the given size.
func Apply(src *image.Gray, op Op, kernelSize, iterations int) (*image.Gray, error) {
	if iterations < 1 {
		return nil, imgerr.Invalid("iterations must be >= 1, got %d", iterations)
	}
	e, err := NewElement(Ellipse, kernelSize)
	if err != nil {
		return nil, err
	}
	switch op {
	case OpDilate:
		return Dilate(src, e, iterations), nil
	case OpErode:
		return Erode(src, e, iterations), nil
	case OpOpen:
		return Open(src, e, iterations), nil
	case OpClose:
		return Close(src, e, iterations), nil
	case OpGradient:
		return Gradient(src, e), nil
	case OpTopHat:
		return TopHat(src, e), nil
	case OpBlackHat:
		return BlackHat(src, e), nil
	}
	return nil, imgerr.Invalid("unknown morphological operation %d", op)
}

// Sequence folds steps left to right over the same buffer.
func Sequence(src *image.Gray, steps []Step) (*image.Gray, error) {
	out := plane.CloneGray(src)
	for i, s := range steps {
		if s.Iterations == 0 {
			s.Iterations = 1
		}
		next, err := Apply(out, s.Op, s.KernelSize, s.Iterations)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, s.Op, err)
		}
		out = next
	}
	return out, nil
}

func repeat(src *image.Gray, e *Element, iterations int, fn func(*image.Gray, []offset) *image.Gray) *image.Gray {
	offs := e.offsets()
	out := plane.CloneGray(src)
	for i := 0; i < max(iterations, 1); i++ {
		out = fn(out, offs)
	}
	return out
}

func dilateOnce(src *image.Gray, offs []offset) *image.Gray {
	return extremum(src, offs, func(cur, cand uint8) bool { return cand > cur }, 0)
}

func erodeOnce(src *image.Gray, offs []offset) *image.Gray {
	return extremum(src, offs, func(cur, cand uint8) bool { return cand < cur }, 255)
}

// extremum ignores samples that fall outside the image.
func extremum(src *image.Gray, offs []offset, better func(cur, cand uint8) bool, init uint8) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := init
			for _, o := range offs {
				sx, sy := x+o.dx, y+o.dy
				if sx < 0 || sy < 0 || sx >= w || sy >= h {
					continue
				}
				if s := src.Pix[sy*src.Stride+sx]; better(v, s) {
					v = s
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

func subtract(a, b *image.Gray) *image.Gray {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			va, vb := a.Pix[y*a.Stride+x], b.Pix[y*b.Stride+x]
			if va > vb {
				out.Pix[y*out.Stride+x] = va - vb
			}
		}
	}
	return out
}
