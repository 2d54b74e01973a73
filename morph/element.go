// Package morph implements grayscale morphology with structuring elements.
package morph

import (
	"math"

	"github.com/chaos-io/cutout/imgerr"
)

// Shape of a structuring element.
type Shape int

const (
	Ellipse Shape = iota
	Rect
	Cross
)

const maxKernelSize = 51

// Element is a size×size boolean probe anchored at (size/2, size/2).
type Element struct {
	Size int
	Mask []bool
}

// NewElement builds the element for the given shape and side length.
func NewElement(shape Shape, size int) (*Element, error) {
	if size < 1 || size > maxKernelSize {
		return nil, imgerr.Invalid("kernel size must be in [1, %d], got %d", maxKernelSize, size)
	}
	e := &Element{Size: size, Mask: make([]bool, size*size)}
	c := size / 2
	switch shape {
	case Rect:
		for i := range e.Mask {
			e.Mask[i] = true
		}
	case Cross:
		for i := 0; i < size; i++ {
			e.Mask[c*size+i] = true
			e.Mask[i*size+c] = true
		}
	case Ellipse:
		r := c
		var invR2 float64
		if r > 0 {
			invR2 = 1 / float64(r*r)
		}
		for i := 0; i < size; i++ {
			dy := i - r
			if dy < -r || dy > r {
				continue
			}
			dx := int(math.Round(float64(c) * math.Sqrt(float64(r*r-dy*dy)*invR2)))
			j1 := max(c-dx, 0)
			j2 := min(c+dx+1, size)
			for j := j1; j < j2; j++ {
				e.Mask[i*size+j] = true
			}
		}
	default:
		return nil, imgerr.Invalid("unknown element shape %d", shape)
	}
	return e, nil
}

type offset struct{ dx, dy int }

func (e *Element) offsets() []offset {
	c := e.Size / 2
	var out []offset
	for i := 0; i < e.Size; i++ {
		for j := 0; j < e.Size; j++ {
			if e.Mask[i*e.Size+j] {
				out = append(out, offset{dx: j - c, dy: i - c})
			}
		}
	}
	return out
}
