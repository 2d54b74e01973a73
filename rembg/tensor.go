// Package rembg runs a salient-object model to separate a subject from its
// background.
package rembg

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

// DefaultInputSize is the square side the saliency model expects.
const DefaultInputSize = 320

var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Tensor is a 1×3×Size×Size float input in channel-major order.
type Tensor struct {
	Size int       `json:"size"`
	Data []float32 `json:"data"`
}

// Shape is the NCHW shape of the tensor.
func (t *Tensor) Shape() []int {
	return []int{1, 3, t.Size, t.Size}
}

// NewTensor resizes the RGB part of img to size×size with bilinear
// sampling, scales it to [0,1] and normalizes each channel with the
// ImageNet statistics.
func NewTensor(img image.Image, size int) (*Tensor, error) {
	if size < 1 {
		return nil, imgerr.Invalid("tensor size must be positive, got %d", size)
	}
	if plane.Empty(img.Bounds()) {
		return nil, imgerr.Degenerate("cannot build a tensor from an empty image")
	}
	src := plane.ToNRGBA(img)
	opaque := image.NewNRGBA(src.Bounds())
	draw.Draw(opaque, opaque.Bounds(), src, image.Point{}, draw.Src)
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 255
	}
	resized := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(resized, resized.Bounds(), opaque, opaque.Bounds(), draw.Src, nil)

	t := &Tensor{Size: size, Data: make([]float32, 3*size*size)}
	area := size * size
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < size; x++ {
			for c := 0; c < 3; c++ {
				v := float32(row[x*4+c]) / 255
				t.Data[c*area+y*size+x] = (v - imagenetMean[c]) / imagenetStd[c]
			}
		}
	}
	return t, nil
}
