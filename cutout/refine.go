// Package cutout turns a subject mask into a clean cut-out: alpha
// refinement, auto-cropping, background compositing and resizing.
package cutout

import (
	"image"

	"go.uber.org/zap"

	"github.com/chaos-io/cutout/filter"
	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/morph"
	"github.com/chaos-io/cutout/plane"
	"github.com/chaos-io/cutout/util"
)

const (
	StrategyFull        = "full"
	StrategyBasic       = "basic"
	StrategyPassthrough = "passthrough"
)

type RefineParams struct {
	// Strength is the side of the elliptical element used to close and open
	// the mask.
	Strength int `json:"strength" mapstructure:"strength"`
}

// alphaFloor is the highest refined alpha cleared to zero by the blurring
// strategies.
const alphaFloor = 8

func DefaultRefineParams() RefineParams {
	return RefineParams{Strength: 3}
}

func (p RefineParams) Validate() error {
	if p.Strength < 1 || p.Strength > 5 {
		return imgerr.Invalid("refine strength must be in [1, 5], got %d", p.Strength)
	}
	return nil
}

// Strategy is one way of refining a mask. Run must not modify its input.
type Strategy struct {
	Name string
	Run  func(mask *image.Gray, p RefineParams) (*image.Gray, error)
}

// Refiner tries its strategies in order and keeps the first result.
type Refiner struct {
	strategies []Strategy
}

// NewRefiner uses DefaultStrategies when none are given.
func NewRefiner(strategies ...Strategy) *Refiner {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Refiner{strategies: strategies}
}

func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyFull, Run: refineFull},
		{Name: StrategyBasic, Run: refineBasic},
		{Name: StrategyPassthrough, Run: passthrough},
	}
}

// Refine returns the refined mask and the name of the strategy that made it.
func (r *Refiner) Refine(mask *image.Gray, p RefineParams) (*image.Gray, string, error) {
	if err := p.Validate(); err != nil {
		return nil, "", err
	}
	var lastErr error
	for _, s := range r.strategies {
		out, err := s.Run(mask, p)
		if err == nil {
			return out, s.Name, nil
		}
		util.Logger.Warn("mask refinement strategy failed", zap.String("strategy", s.Name), zap.Error(err))
		lastErr = err
	}
	if lastErr == nil {
		return nil, "", imgerr.Failure("no refinement strategy configured")
	}
	return nil, "", lastErr
}

// RefineAlpha refines the alpha plane of img and returns a copy carrying it.
func (r *Refiner) RefineAlpha(img *image.NRGBA, p RefineParams) (*image.NRGBA, string, error) {
	ch := plane.Split(img)
	alpha, name, err := r.Refine(ch[3], p)
	if err != nil {
		return nil, "", err
	}
	return plane.Merge(ch[0], ch[1], ch[2], alpha), name, nil
}

// refineFull smooths the mask edge-aware, pulls it back onto the raw mask's
// structure with a guided filter, then closes holes and drops specks.
func refineFull(mask *image.Gray, p RefineParams) (*image.Gray, error) {
	smoothed, err := filter.BilateralGray(mask, 9, 75, 75)
	if err != nil {
		return nil, err
	}
	guided, err := filter.Guided(mask, smoothed, 4, 50)
	if err != nil {
		return nil, err
	}
	e, err := morph.NewElement(morph.Ellipse, p.Strength)
	if err != nil {
		return nil, err
	}
	cleaned := morph.Open(morph.Close(guided, e, 1), e, 1)
	out := plane.GaussianBlur(plane.FromGray(cleaned), 3, 0.5, plane.Reflect101).Gray()
	return plane.ClearFaint(out, alphaFloor), nil
}

func refineBasic(mask *image.Gray, p RefineParams) (*image.Gray, error) {
	e, err := morph.NewElement(morph.Ellipse, p.Strength)
	if err != nil {
		return nil, err
	}
	closed := morph.Close(mask, e, 1)
	out := plane.GaussianBlur(plane.FromGray(closed), 3, 0, plane.Reflect101).Gray()
	return plane.ClearFaint(out, alphaFloor), nil
}

func passthrough(mask *image.Gray, _ RefineParams) (*image.Gray, error) {
	return plane.CloneGray(mask), nil
}
