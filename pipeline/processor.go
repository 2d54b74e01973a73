// Package pipeline chains saliency removal, mask refinement, cropping,
// compositing and enhancement into the service's end-to-end operations.
package pipeline

import (
	"context"
	"image"
	"image/color"
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/enhance"
	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/util"
)

const (
	DefaultMaxDimension = 2048
	DefaultPadding      = 30
	DefaultTimeout      = 2 * time.Minute
)

// Options selects the stages Process runs. A nil Refine or Background
// skips that stage.
type Options struct {
	MaxDimension int
	Refine       *cutout.RefineParams
	Crop         bool
	Padding      int
	Background   *color.NRGBA
	Enhance      bool
	Timeout      time.Duration
}

// RemoveOptions removes the background and lightly refines the edge.
func RemoveOptions() Options {
	return Options{
		MaxDimension: DefaultMaxDimension,
		Refine:       &cutout.RefineParams{Strength: 2},
		Timeout:      DefaultTimeout,
	}
}

// AdvancedOptions refines at full strength and crops to the subject.
func AdvancedOptions() Options {
	return Options{
		MaxDimension: DefaultMaxDimension,
		Refine:       &cutout.RefineParams{Strength: 3},
		Crop:         true,
		Padding:      DefaultPadding,
		Timeout:      DefaultTimeout,
	}
}

func (o Options) Validate() error {
	if o.MaxDimension < 0 {
		return imgerr.Invalid("max dimension must be non-negative, got %d", o.MaxDimension)
	}
	if o.Refine != nil {
		if err := o.Refine.Validate(); err != nil {
			return err
		}
	}
	if o.Padding < 0 {
		return imgerr.Invalid("padding must be non-negative, got %d", o.Padding)
	}
	if o.Timeout < 0 {
		return imgerr.Invalid("timeout must be non-negative, got %s", o.Timeout)
	}
	return nil
}

type Result struct {
	Image *image.NRGBA
	// RemovalSkipped is set when the input already carried transparency.
	RemovalSkipped bool
	Refinement     string
	Enhancement    string
}

type Processor struct {
	session  *rembg.Session
	refiner  *cutout.Refiner
	enhancer *enhance.Enhancer
}

// NewProcessor wires the stages. A nil session makes removal report
// ErrModelUnavailable; nil refiner and enhancer use the default chains.
func NewProcessor(session *rembg.Session, refiner *cutout.Refiner, enhancer *enhance.Enhancer) *Processor {
	if refiner == nil {
		refiner = cutout.NewRefiner()
	}
	if enhancer == nil {
		enhancer = enhance.NewEnhancer(nil)
	}
	return &Processor{session: session, refiner: refiner, enhancer: enhancer}
}

func (p *Processor) Session() *rembg.Session {
	return p.session
}

func (p *Processor) Enhancer() *enhance.Enhancer {
	return p.enhancer
}

// Process runs resize, removal, refinement, crop, compositing and
// enhancement in that order under the options' timeout. The context is
// checked between stages.
func (p *Processor) Process(ctx context.Context, img image.Image, o Options) (*Result, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if plane.Empty(img.Bounds()) {
		return nil, imgerr.Degenerate("empty image")
	}
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	res := &Result{}
	src := plane.ToNRGBA(img)
	res.RemovalSkipped = cutout.HasUsefulAlpha(src)
	src = cutout.ResizeWithinMax(src, o.MaxDimension)

	var err error
	out := src
	if !res.RemovalSkipped {
		if out, err = p.session.Remove(ctx, src); err != nil {
			return nil, err
		}
	}

	if o.Refine != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if out, res.Refinement, err = p.refiner.RefineAlpha(out, *o.Refine); err != nil {
			return nil, err
		}
	}

	if o.Crop {
		if out, err = cutout.AutoCrop(out, o.Padding); err != nil {
			return nil, err
		}
	}

	if o.Background != nil {
		out = plane.ToNRGBA(cutout.AddBackgroundColor(out, *o.Background))
	}

	if o.Enhance {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if out, res.Enhancement, err = p.enhancer.Enhance(ctx, out); err != nil {
			return nil, err
		}
	}

	util.Logger.Debug("pipeline finished",
		zap.Bool("removal_skipped", res.RemovalSkipped),
		zap.String("refinement", res.Refinement),
		zap.String("enhancement", res.Enhancement),
		zap.Int("width", out.Bounds().Dx()),
		zap.Int("height", out.Bounds().Dy()),
	)
	res.Image = out
	return res, nil
}

// Enhance runs only the enhancement chain.
func (p *Processor) Enhance(ctx context.Context, img image.Image, timeout time.Duration) (*Result, error) {
	if plane.Empty(img.Bounds()) {
		return nil, imgerr.Degenerate("empty image")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, name, err := p.enhancer.Enhance(ctx, plane.ToNRGBA(img))
	if err != nil {
		return nil, err
	}
	return &Result{Image: out, Enhancement: name}, nil
}
