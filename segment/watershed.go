package segment

import (
	"image"

	"github.com/chaos-io/cutout/morph"
	"github.com/chaos-io/cutout/plane"
)

const (
	boundary int32 = -1
	inQueue  int32 = -2
)

// Watershed separates touching objects and returns 255 for every pixel that
// ends up in a region other than the background marker.
func Watershed(img image.Image) *image.Gray {
	return WatershedLabels(img).Mask(func(l int32) bool { return l > 1 })
}

// WatershedLabels seeds markers from the distance transform of a denoised
// luma image and floods them over the color gradient. Label 1 is the sure
// background, labels from 2 are foreground cores, -1 marks boundaries.
func WatershedLabels(img image.Image) *LabelMap {
	rgba := plane.ToNRGBA(img)
	gray := plane.Luma(rgba)

	rect, _ := morph.NewElement(morph.Rect, 3)
	opening := morph.Open(gray, rect, 2)
	sureBG := morph.Dilate(opening, rect, 3)

	dist := DistanceTransform(opening)
	_, maxDist := dist.MinMax()
	sureFG := image.NewGray(opening.Bounds())
	for i, d := range dist.Pix {
		if d > 0.5*maxDist {
			sureFG.Pix[i] = 255
		}
	}

	markers, _ := ConnectedComponents(sureFG)
	for i := range markers.Labels {
		markers.Labels[i]++
		if sureBG.Pix[i] == 255 && sureFG.Pix[i] == 0 {
			markers.Labels[i] = 0
		}
	}
	Flood(rgba, markers)
	return markers
}

// Flood grows the positive markers over the image in order of increasing
// color difference. Pixels labeled 0 are claimed by a neighboring region or
// become -1 where two regions meet. The outermost image frame is set to -1.
func Flood(img *image.NRGBA, markers *LabelMap) {
	w, h := markers.Width, markers.Height
	lab := markers.Labels
	for x := 0; x < w; x++ {
		lab[x] = boundary
		lab[(h-1)*w+x] = boundary
	}
	for y := 0; y < h; y++ {
		lab[y*w] = boundary
		lab[y*w+w-1] = boundary
	}
	if w < 3 || h < 3 {
		return
	}

	diff := func(a, b int) int {
		pa := img.Pix[(a/w)*img.Stride+(a%w)*4:]
		pb := img.Pix[(b/w)*img.Stride+(b%w)*4:]
		d := 0
		for c := 0; c < 3; c++ {
			d = max(d, absInt(int(pa[c])-int(pb[c])))
		}
		return d
	}
	neighbors := [4]int{-1, 1, -w, w}

	var queues [256][]int
	active := 256
	push := func(pri, i int) {
		queues[pri] = append(queues[pri], i)
		active = min(active, pri)
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			if lab[i] != 0 {
				continue
			}
			best := 256
			for _, o := range neighbors {
				if lab[i+o] > 0 {
					best = min(best, diff(i, i+o))
				}
			}
			if best < 256 {
				push(best, i)
				lab[i] = inQueue
			}
		}
	}

	for {
		for active < 256 && len(queues[active]) == 0 {
			active++
		}
		if active == 256 {
			return
		}
		i := queues[active][0]
		queues[active] = queues[active][1:]

		var l int32
		for _, o := range neighbors {
			n := lab[i+o]
			if n <= 0 {
				continue
			}
			if l == 0 {
				l = n
			} else if n != l {
				l = boundary
			}
		}
		lab[i] = l
		if l == boundary {
			continue
		}
		for _, o := range neighbors {
			if lab[i+o] == 0 {
				push(diff(i, i+o), i+o)
				lab[i+o] = inQueue
			}
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
