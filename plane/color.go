package plane

import (
	"image"
	"image/draw"
)

// ToNRGBA converts any image into an origin-based NRGBA buffer.
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ToGray converts any image into an origin-based 8-bit luma plane.
func ToGray(img image.Image) *image.Gray {
	switch im := img.(type) {
	case *image.Gray:
		return CloneGray(im)
	case *image.NRGBA:
		return Luma(im)
	default:
		return Luma(ToNRGBA(img))
	}
}

// Luma computes Y = 0.299R + 0.587G + 0.114B with fixed-point rounding.
func Luma(img *image.NRGBA) *image.Gray {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	gray := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			r, g, b := uint32(src[x*4]), uint32(src[x*4+1]), uint32(src[x*4+2])
			dst[x] = uint8((r*4899 + g*9617 + b*1868 + 8192) >> 14)
		}
	}
	return gray
}

// Split extracts the R, G, B and A channels as separate planes.
func Split(img *image.NRGBA) [4]*image.Gray {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	var out [4]*image.Gray
	for c := range out {
		out[c] = image.NewGray(image.Rect(0, 0, w, h))
	}
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			for c := 0; c < 4; c++ {
				out[c].Pix[y*out[c].Stride+x] = src[x*4+c]
			}
		}
	}
	return out
}

// Merge assembles an NRGBA buffer; a nil alpha plane means opaque.
func Merge(r, g, b, a *image.Gray) *image.NRGBA {
	w, h := r.Bounds().Dx(), r.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			dst[x*4] = r.Pix[y*r.Stride+x]
			dst[x*4+1] = g.Pix[y*g.Stride+x]
			dst[x*4+2] = b.Pix[y*b.Stride+x]
			if a != nil {
				dst[x*4+3] = a.Pix[y*a.Stride+x]
			} else {
				dst[x*4+3] = 0xff
			}
		}
	}
	return out
}

// MapRGB applies fn to the R, G and B planes independently and keeps alpha.
func MapRGB(img *image.NRGBA, fn func(*image.Gray) *image.Gray) *image.NRGBA {
	ch := Split(img)
	return Merge(fn(ch[0]), fn(ch[1]), fn(ch[2]), ch[3])
}

// YCrCb holds a luma plane plus unquantized chroma.
type YCrCb struct {
	Y      *image.Gray
	Cr, Cb *Plane
	Alpha  *image.Gray
}

const chromaDelta = 128

// ToYCrCb converts RGB to Y/Cr/Cb, quantizing only the luma.
func ToYCrCb(img *image.NRGBA) *YCrCb {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := &YCrCb{
		Y:     image.NewGray(image.Rect(0, 0, w, h)),
		Cr:    New(w, h),
		Cb:    New(w, h),
		Alpha: image.NewGray(image.Rect(0, 0, w, h)),
	}
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			r, g, b := float64(src[x*4]), float64(src[x*4+1]), float64(src[x*4+2])
			yy := 0.299*r + 0.587*g + 0.114*b
			out.Y.Pix[y*out.Y.Stride+x] = Saturate(yy)
			out.Cr.Pix[y*w+x] = (r-yy)*0.713 + chromaDelta
			out.Cb.Pix[y*w+x] = (b-yy)*0.564 + chromaDelta
			out.Alpha.Pix[y*out.Alpha.Stride+x] = src[x*4+3]
		}
	}
	return out
}

// NRGBA converts back to RGB, replacing luma with the stored Y plane.
func (c *YCrCb) NRGBA() *image.NRGBA {
	w, h := c.Y.Bounds().Dx(), c.Y.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			yy := float64(c.Y.Pix[y*c.Y.Stride+x])
			cr := c.Cr.Pix[y*w+x] - chromaDelta
			cb := c.Cb.Pix[y*w+x] - chromaDelta
			dst[x*4] = Saturate(yy + 1.403*cr)
			dst[x*4+1] = Saturate(yy - 0.714*cr - 0.344*cb)
			dst[x*4+2] = Saturate(yy + 1.773*cb)
			dst[x*4+3] = c.Alpha.Pix[y*c.Alpha.Stride+x]
		}
	}
	return out
}
