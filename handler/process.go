package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/cutout/edge"
	"github.com/chaos-io/cutout/filter"
	"github.com/chaos-io/cutout/freq"
	"github.com/chaos-io/cutout/histogram"
	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/morph"
	"github.com/chaos-io/cutout/plane"
	"github.com/chaos-io/cutout/segment"
	"github.com/chaos-io/cutout/util"
)

func (h *Handler) HistogramEqualization(c *gin.Context) {
	m, err := histogram.ParseMethod(c.DefaultPostForm("method", "clahe"))
	if err != nil {
		h.fail(c, "histogram-equalization", err)
		return
	}
	h.serveImage(c, "histogram-equalization", m.String(), func(_ context.Context, img image.Image) (image.Image, error) {
		return histogram.Equalize(plane.ToNRGBA(img), m)
	})
}

// HistogramMatching maps the histogram of file onto that of reference.
func (h *Handler) HistogramMatching(c *gin.Context) {
	ref, err := h.readUpload(c, "reference")
	if err != nil {
		h.fail(c, "histogram-matching", err)
		return
	}
	h.serveImage(c, "histogram-matching", util.BytesMD5(ref.data), func(ctx context.Context, img image.Image) (image.Image, error) {
		return histogram.Match(ctx, plane.ToNRGBA(img), plane.ToNRGBA(ref.img))
	})
}

func (h *Handler) BrightnessContrast(c *gin.Context) {
	f := &form{c: c}
	brightness := f.Float("brightness", 0)
	contrast := f.Float("contrast", 1)
	gamma := f.Float("gamma", 1)
	if f.err != nil {
		h.fail(c, "adjust-brightness-contrast", f.err)
		return
	}
	params := fmt.Sprintf("%g,%g,%g", brightness, contrast, gamma)
	h.serveImage(c, "adjust-brightness-contrast", params, func(_ context.Context, img image.Image) (image.Image, error) {
		out, err := histogram.BrightnessContrast(plane.ToNRGBA(img), brightness, contrast)
		if err != nil || gamma == 1 {
			return out, err
		}
		return histogram.Gamma(out, gamma)
	})
}

func (h *Handler) Gamma(c *gin.Context) {
	f := &form{c: c}
	gamma := f.Float("gamma", 1)
	if f.err != nil {
		h.fail(c, "gamma", f.err)
		return
	}
	h.serveImage(c, "gamma", fmt.Sprintf("%g", gamma), func(_ context.Context, img image.Image) (image.Image, error) {
		return histogram.Gamma(plane.ToNRGBA(img), gamma)
	})
}

func (h *Handler) SpatialFilter(c *gin.Context) {
	kind, err := filter.ParseKind(c.DefaultPostForm("filter_type", "gaussian"))
	if err != nil {
		h.fail(c, "spatial-filter", err)
		return
	}
	p := filter.DefaultParams(kind)
	f := &form{c: c}
	p.KernelSize = f.Int("kernel_size", p.KernelSize)
	p.Sigma = f.Float("sigma", p.Sigma)
	p.Diameter = f.Int("d", p.Diameter)
	p.SigmaColor = f.Float("sigma_color", p.SigmaColor)
	p.SigmaSpace = f.Float("sigma_space", p.SigmaSpace)
	p.Strength = f.Float("strength", p.Strength)
	p.Amount = f.Float("amount", p.Amount)
	p.Threshold = f.Float("threshold", p.Threshold)
	if f.err != nil {
		h.fail(c, "spatial-filter", f.err)
		return
	}
	if err := p.Validate(); err != nil {
		h.fail(c, "spatial-filter", err)
		return
	}
	h.serveImage(c, "spatial-filter", fmt.Sprintf("%+v", p), func(_ context.Context, img image.Image) (image.Image, error) {
		return filter.Apply(plane.ToNRGBA(img), p)
	})
}

func (h *Handler) FrequencyFilter(c *gin.Context) {
	kind, err := freq.ParseKind(c.DefaultPostForm("filter_type", "lowpass"))
	if err != nil {
		h.fail(c, "frequency-filter", err)
		return
	}
	p := freq.DefaultParams(kind)
	f := &form{c: c}
	p.Cutoff = f.Float("cutoff", p.Cutoff)
	p.Order = f.Int("order", p.Order)
	p.LowCutoff = f.Float("low_cutoff", p.LowCutoff)
	p.HighCutoff = f.Float("high_cutoff", p.HighCutoff)
	if f.err != nil {
		h.fail(c, "frequency-filter", f.err)
		return
	}
	if err := p.Validate(); err != nil {
		h.fail(c, "frequency-filter", err)
		return
	}
	h.serveImage(c, "frequency-filter", fmt.Sprintf("%+v", p), func(ctx context.Context, img image.Image) (image.Image, error) {
		return freq.Apply(ctx, plane.ToNRGBA(img), p)
	})
}

func (h *Handler) EdgeDetection(c *gin.Context) {
	m, err := edge.ParseMethod(c.DefaultPostForm("method", "canny"))
	if err != nil {
		h.fail(c, "edge-detection", err)
		return
	}
	p := edge.DefaultParams(m)
	f := &form{c: c}
	p.Low = f.Float("threshold1", p.Low)
	p.High = f.Float("threshold2", p.High)
	p.KernelSize = f.Int("kernel_size", p.KernelSize)
	if f.err != nil {
		h.fail(c, "edge-detection", f.err)
		return
	}
	if err := p.Validate(); err != nil {
		h.fail(c, "edge-detection", err)
		return
	}
	h.serveImage(c, "edge-detection", fmt.Sprintf("%+v", p), func(_ context.Context, img image.Image) (image.Image, error) {
		return edge.Detect(img, p)
	})
}

type compareResponse struct {
	Filename string            `json:"filename"`
	Results  map[string]string `json:"results"`
}

// CompareEdgeDetectors runs every edge detector on one image and returns
// the results as data URIs.
func (h *Handler) CompareEdgeDetectors(c *gin.Context) {
	up, err := h.readUpload(c, "file")
	if err != nil {
		h.fail(c, "compare-edge-detectors", err)
		return
	}
	results, err := edge.Compare(up.img)
	if err != nil {
		h.fail(c, "compare-edge-detectors", err)
		return
	}
	resp := compareResponse{Filename: up.filename, Results: make(map[string]string, len(results))}
	for m, g := range results {
		encoded, err := util.EncodePNGBase64(g)
		if err != nil {
			h.fail(c, "compare-edge-detectors", err)
			return
		}
		resp.Results[m.String()] = "data:image/png;base64," + encoded
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SegmentThreshold(c *gin.Context) {
	method := c.DefaultPostForm("method", "otsu")
	switch method {
	case "otsu":
		h.serveImage(c, "segment-threshold", method, func(_ context.Context, img image.Image) (image.Image, error) {
			out, th := segment.Otsu(plane.ToGray(img))
			util.Logger.Info("otsu threshold", zap.Uint8("threshold", th))
			c.Header("X-Threshold", fmt.Sprintf("%d", th))
			return out, nil
		})
	case "adaptive":
		am, err := segment.ParseAdaptiveMethod(c.DefaultPostForm("adaptive_method", "gaussian"))
		if err != nil {
			h.fail(c, "segment-threshold", err)
			return
		}
		p := segment.DefaultAdaptiveParams()
		p.Method = am
		f := &form{c: c}
		p.BlockSize = f.Int("block_size", p.BlockSize)
		p.C = f.Float("C", p.C)
		if f.err != nil {
			h.fail(c, "segment-threshold", f.err)
			return
		}
		if err := p.Validate(); err != nil {
			h.fail(c, "segment-threshold", err)
			return
		}
		h.serveImage(c, "segment-threshold", fmt.Sprintf("adaptive:%+v", p), func(_ context.Context, img image.Image) (image.Image, error) {
			return segment.Adaptive(plane.ToGray(img), p)
		})
	default:
		h.fail(c, "segment-threshold", imgerr.Invalid("unknown threshold method %q", method))
	}
}

func (h *Handler) SegmentColor(c *gin.Context) {
	space, err := segment.ParseColorSpace(c.DefaultPostForm("color_space", "hsv"))
	if err != nil {
		h.fail(c, "segment-color", err)
		return
	}
	p := segment.DefaultColorParams(space)
	f := &form{c: c}
	for i, ch := range []string{"h", "s", "v"} {
		p.Lower[i] = f.Int("lower_"+ch, p.Lower[i])
		p.Upper[i] = f.Int("upper_"+ch, p.Upper[i])
	}
	if f.err != nil {
		h.fail(c, "segment-color", f.err)
		return
	}
	if err := p.Validate(); err != nil {
		h.fail(c, "segment-color", err)
		return
	}
	h.serveImage(c, "segment-color", fmt.Sprintf("%+v", p), func(_ context.Context, img image.Image) (image.Image, error) {
		return segment.ColorRange(plane.ToNRGBA(img), p)
	})
}

func (h *Handler) SegmentKMeans(c *gin.Context) {
	p := segment.DefaultKMeansParams()
	f := &form{c: c}
	p.K = f.Int("k", p.K)
	if f.err != nil {
		h.fail(c, "segment-kmeans", f.err)
		return
	}
	if err := p.Validate(); err != nil {
		h.fail(c, "segment-kmeans", err)
		return
	}
	h.serveImage(c, "segment-kmeans", fmt.Sprintf("k=%d", p.K), func(_ context.Context, img image.Image) (image.Image, error) {
		return segment.KMeans(plane.ToNRGBA(img), p)
	})
}

func (h *Handler) SegmentWatershed(c *gin.Context) {
	h.serveImage(c, "segment-watershed", "", func(_ context.Context, img image.Image) (image.Image, error) {
		return segment.Watershed(img), nil
	})
}

// SegmentRegion grows a region from the seed point, the image center when
// none is given.
func (h *Handler) SegmentRegion(c *gin.Context) {
	f := &form{c: c}
	seedX := f.Int("seed_x", -1)
	seedY := f.Int("seed_y", -1)
	threshold := f.Int("threshold", 10)
	if f.err != nil {
		h.fail(c, "segment-region", f.err)
		return
	}
	if threshold < 0 || threshold > 255 {
		h.fail(c, "segment-region", imgerr.Invalid("threshold must be in [0, 255], got %d", threshold))
		return
	}
	params := fmt.Sprintf("%d,%d,%d", seedX, seedY, threshold)
	h.serveImage(c, "segment-region", params, func(_ context.Context, img image.Image) (image.Image, error) {
		g := plane.ToGray(img)
		seed := image.Pt(seedX, seedY)
		if seedX < 0 && seedY < 0 {
			seed = image.Pt(g.Bounds().Dx()/2, g.Bounds().Dy()/2)
		}
		return segment.RegionGrow(g, seed, threshold), nil
	})
}

// Morphology applies one operation, or a sequence given as a JSON steps array.
func (h *Handler) Morphology(c *gin.Context) {
	var steps []morph.Step
	if raw, ok := c.GetPostForm("steps"); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &steps); err != nil {
			h.fail(c, "morphology", imgerr.Invalid("steps: %v", err))
			return
		}
		if len(steps) == 0 {
			h.fail(c, "morphology", imgerr.Invalid("steps must not be empty"))
			return
		}
	} else {
		op, err := morph.ParseOp(c.DefaultPostForm("operation", "opening"))
		if err != nil {
			h.fail(c, "morphology", err)
			return
		}
		f := &form{c: c}
		step := morph.Step{Op: op, KernelSize: f.Int("kernel_size", 5), Iterations: f.Int("iterations", 1)}
		if f.err != nil {
			h.fail(c, "morphology", f.err)
			return
		}
		steps = []morph.Step{step}
	}

	params, _ := json.Marshal(steps)
	h.serveImage(c, "morphology", string(params), func(_ context.Context, img image.Image) (image.Image, error) {
		return morph.Sequence(plane.ToGray(img), steps)
	})
}
