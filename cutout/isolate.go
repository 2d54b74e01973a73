package cutout

import (
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

// HasUsefulAlpha reports whether any pixel is not fully opaque, meaning the
// image already carries a cut-out.
func HasUsefulAlpha(img *image.NRGBA) bool {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 255 {
				return true
			}
		}
	}
	return false
}

// AlphaBounds returns the smallest rectangle covering every pixel whose
// alpha exceeds threshold. The last row and column found are included.
func AlphaBounds(img *image.NRGBA, threshold uint8) (image.Rectangle, bool) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	minX, minY := w, h
	maxX, maxY := 0, 0
	found := false

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] <= threshold {
				continue
			}
			found = true
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	if !found {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// AutoCrop crops to the non-transparent subject grown by padding on every
// side and clamped to the image. A fully transparent image comes back as an
// unchanged copy.
func AutoCrop(img *image.NRGBA, padding int) (*image.NRGBA, error) {
	if padding < 0 {
		return nil, imgerr.Invalid("padding must be non-negative, got %d", padding)
	}
	box, ok := AlphaBounds(img, 0)
	if !ok {
		return crop(img, image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())), nil
	}
	rect := image.Rect(
		box.Min.X-padding, box.Min.Y-padding,
		box.Max.X+padding, box.Max.Y+padding,
	).Intersect(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	return crop(img, rect), nil
}

// crop copies the origin-relative rect of img into a new origin-based image.
func crop(img *image.NRGBA, rect image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min.Add(rect.Min), draw.Src)
	return dst
}

// AddBackgroundColor composites img over an opaque solid color weighted by
// its alpha. Image types without an alpha channel are returned as they are.
func AddBackgroundColor(img image.Image, c color.NRGBA) image.Image {
	switch img.(type) {
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64:
	default:
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	bg := image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
	draw.Draw(dst, dst.Bounds(), bg, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// ParseColor reads an "r,g,b" triple of 0..255 integers.
func ParseColor(s string) (color.NRGBA, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return color.NRGBA{}, imgerr.Invalid("color must be \"r,g,b\", got %q", s)
	}
	var rgb [3]uint8
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 || v > 255 {
			return color.NRGBA{}, imgerr.Invalid("color component %q must be an integer in [0, 255]", part)
		}
		rgb[i] = uint8(v)
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
}

// ResizeWithinMax scales img with Lanczos3 so its longest side is at most
// maxDim. Smaller images and maxDim <= 0 return img itself.
func ResizeWithinMax(img *image.NRGBA, maxDim int) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)

	if maxDim <= 0 || longest <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(longest)
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	resized := resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
	return plane.ToNRGBA(resized)
}
