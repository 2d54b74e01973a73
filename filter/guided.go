package filter

import (
	"image"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

// Guided runs the box-window guided filter of src steered by guide. Means are
// taken over clipped windows of the given radius; eps regularizes flat areas
// and is expressed in squared intensity units.
func Guided(guide, src *image.Gray, radius int, eps float64) (*image.Gray, error) {
	if guide.Bounds().Size() != src.Bounds().Size() {
		return nil, imgerr.Failure("guided filter: guide %v and source %v differ in size",
			guide.Bounds().Size(), src.Bounds().Size())
	}
	if radius <= 0 || eps <= 0 {
		return nil, imgerr.Failure("guided filter: radius %d and eps %g must be positive", radius, eps)
	}
	I := plane.FromGray(guide)
	p := plane.FromGray(src)

	meanI := plane.BoxMean(I, radius)
	meanP := plane.BoxMean(p, radius)
	corrI := plane.BoxMean(plane.Mul(I, I), radius)
	corrIP := plane.BoxMean(plane.Mul(I, p), radius)

	a := plane.New(I.Width, I.Height)
	b := plane.New(I.Width, I.Height)
	for i := range a.Pix {
		varI := corrI.Pix[i] - meanI.Pix[i]*meanI.Pix[i]
		covIP := corrIP.Pix[i] - meanI.Pix[i]*meanP.Pix[i]
		a.Pix[i] = covIP / (varI + eps)
		b.Pix[i] = meanP.Pix[i] - a.Pix[i]*meanI.Pix[i]
	}
	meanA := plane.BoxMean(a, radius)
	meanB := plane.BoxMean(b, radius)

	q := plane.New(I.Width, I.Height)
	for i := range q.Pix {
		q.Pix[i] = meanA.Pix[i]*I.Pix[i] + meanB.Pix[i]
	}
	return q.Gray(), nil
}
