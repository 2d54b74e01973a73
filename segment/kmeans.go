package segment

import (
	"image"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
)

type KMeansParams struct {
	K        int
	Attempts int
	MaxIter  int
	// Epsilon stops an attempt once no center moves farther than it.
	Epsilon float64
	Seed    uint64
}

func DefaultKMeansParams() KMeansParams {
	return KMeansParams{K: 3, Attempts: 10, MaxIter: 100, Epsilon: 0.2, Seed: 1}
}

func (p KMeansParams) Validate() error {
	if p.K < 1 || p.K > 64 {
		return imgerr.Invalid("k must be in [1, 64], got %d", p.K)
	}
	if p.Attempts < 1 || p.MaxIter < 1 {
		return imgerr.Invalid("attempts and max iterations must be positive, got %d/%d", p.Attempts, p.MaxIter)
	}
	if p.Epsilon < 0 {
		return imgerr.Invalid("epsilon must be non-negative, got %g", p.Epsilon)
	}
	return nil
}

// KMeans clusters the R, G and B values and paints each pixel with its
// rounded cluster center. Alpha is kept.
func KMeans(img *image.NRGBA, p KMeansParams) (*image.NRGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	points := make([][]float64, 0, w*h)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			points = append(points, []float64{float64(src[x*4]), float64(src[x*4+1]), float64(src[x*4+2])})
		}
	}
	labels, centers, err := cluster(points, p)
	if err != nil {
		return nil, err
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			c := centers[labels[y*w+x]]
			dst[x*4] = plane.Saturate(c[0])
			dst[x*4+1] = plane.Saturate(c[1])
			dst[x*4+2] = plane.Saturate(c[2])
			dst[x*4+3] = src[x*4+3]
		}
	}
	return out, nil
}

func KMeansGray(g *image.Gray, p KMeansParams) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	points := make([][]float64, 0, w*h)
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			points = append(points, []float64{float64(v)})
		}
	}
	labels, centers, err := cluster(points, p)
	if err != nil {
		return nil, err
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	for i, l := range labels {
		out.Pix[i] = plane.Saturate(centers[l][0])
	}
	return out, nil
}

// cluster runs Lloyd iterations from random-sample seeds and keeps the
// attempt with the lowest compactness (sum of squared distances).
func cluster(points [][]float64, p KMeansParams) ([]int, [][]float64, error) {
	if len(points) == 0 {
		return nil, nil, imgerr.Degenerate("k-means on an empty image")
	}
	k := min(p.K, len(points))
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	eps2 := p.Epsilon * p.Epsilon

	var bestLabels []int
	var bestCenters [][]float64
	best := math.Inf(1)
	for a := 0; a < p.Attempts; a++ {
		labels, centers, compact := lloyd(points, k, p.MaxIter, eps2, rng)
		if compact < best {
			best, bestLabels, bestCenters = compact, labels, centers
		}
	}
	return bestLabels, bestCenters, nil
}

// maxSeedRetries bounds the redraws spent avoiding duplicate seeds in images
// with fewer distinct colors than clusters.
const maxSeedRetries = 64

func lloyd(points [][]float64, k, maxIter int, eps2 float64, rng *rand.Rand) ([]int, [][]float64, float64) {
	dim := len(points[0])
	centers := make([][]float64, 0, k)
	for retries := 0; len(centers) < k; {
		pt := points[rng.IntN(len(points))]
		if retries < maxSeedRetries && slices.ContainsFunc(centers, func(c []float64) bool { return floats.Equal(c, pt) }) {
			retries++
			continue
		}
		centers = append(centers, append([]float64(nil), pt...))
	}
	labels := make([]int, len(points))
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for iter := 0; iter < maxIter; iter++ {
		assign(points, centers, labels)

		for c := range sums {
			floats.Scale(0, sums[c])
			counts[c] = 0
		}
		for i, pt := range points {
			floats.Add(sums[labels[i]], pt)
			counts[labels[i]]++
		}
		var shift float64
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			d := floats.Distance(sums[c], centers[c], 2)
			shift = math.Max(shift, d*d)
			copy(centers[c], sums[c])
		}
		if shift <= eps2 {
			break
		}
	}

	compact := assign(points, centers, labels)
	return labels, centers, compact
}

// assign labels every point with its nearest center and returns the total
// squared distance.
func assign(points, centers [][]float64, labels []int) float64 {
	var total float64
	for i, pt := range points {
		bestD := math.Inf(1)
		for c, ctr := range centers {
			d := floats.Distance(pt, ctr, 2)
			if d*d < bestD {
				bestD = d * d
				labels[i] = c
			}
		}
		total += bestD
	}
	return total
}
