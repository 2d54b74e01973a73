package segment

import (
	"image"
)

// LabelMap holds one int32 label per pixel: regions count from 1, 0 is
// background or unknown and -1 marks a watershed boundary.
type LabelMap struct {
	Width, Height int
	Labels        []int32
}

func NewLabelMap(w, h int) *LabelMap {
	return &LabelMap{Width: w, Height: h, Labels: make([]int32, w*h)}
}

func (m *LabelMap) At(x, y int) int32 {
	return m.Labels[y*m.Width+x]
}

// Mask returns 255 wherever keep reports true.
func (m *LabelMap) Mask(keep func(int32) bool) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, l := range m.Labels {
		if keep(l) {
			out.Pix[i] = 255
		}
	}
	return out
}

// ConnectedComponents labels the 8-connected non-zero regions of bin from 1
// in raster order and returns the number of regions found.
func ConnectedComponents(bin *image.Gray) (*LabelMap, int) {
	w, h := bin.Bounds().Dx(), bin.Bounds().Dy()
	m := NewLabelMap(w, h)
	var next int32
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if bin.Pix[y*bin.Stride+x] == 0 || m.Labels[i] != 0 {
				continue
			}
			next++
			m.Labels[i] = next
			stack = append(stack[:0], i)
			for len(stack) > 0 {
				j := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cx, cy := j%w, j/w
				for ny := cy - 1; ny <= cy+1; ny++ {
					for nx := cx - 1; nx <= cx+1; nx++ {
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						k := ny*w + nx
						if bin.Pix[ny*bin.Stride+nx] != 0 && m.Labels[k] == 0 {
							m.Labels[k] = next
							stack = append(stack, k)
						}
					}
				}
			}
		}
	}
	return m, int(next)
}

// RegionGrow floods 4-connected pixels whose value stays within ±threshold
// of the seed value. A seed outside the image yields an all-zero map.
func RegionGrow(g *image.Gray, seed image.Point, threshold int) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if seed.X < 0 || seed.Y < 0 || seed.X >= w || seed.Y >= h {
		return out
	}
	threshold = max(threshold, 0)
	sv := int(g.Pix[seed.Y*g.Stride+seed.X])
	lo, hi := sv-threshold, sv+threshold

	stack := []image.Point{seed}
	out.Pix[seed.Y*out.Stride+seed.X] = 255
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			n := p.Add(d)
			if n.X < 0 || n.Y < 0 || n.X >= w || n.Y >= h || out.Pix[n.Y*out.Stride+n.X] != 0 {
				continue
			}
			if v := int(g.Pix[n.Y*g.Stride+n.X]); v >= lo && v <= hi {
				out.Pix[n.Y*out.Stride+n.X] = 255
				stack = append(stack, n)
			}
		}
	}
	return out
}
