package enhance

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
	"github.com/chaos-io/cutout/util"
	nhttp "github.com/chaos-io/cutout/util/http"
)

const (
	StrategySuperResolution = "super_resolution"
	StrategyFallback        = "fallback"
	StrategyLanczos         = "lanczos"
)

// Upscaler is a super-resolution model. It receives an opaque image and
// returns an enlarged one.
type Upscaler interface {
	Upscale(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error)
}

// HTTPUpscaler posts a PNG to a remote model and reads a PNG back.
type HTTPUpscaler struct {
	url     string
	timeout time.Duration
	cli     nhttp.IClient
}

func NewHTTPUpscaler(url string, timeout time.Duration) *HTTPUpscaler {
	return &HTTPUpscaler{url: url, timeout: timeout, cli: nhttp.NewHTTPClient()}
}

func (u *HTTPUpscaler) Upscale(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error) {
	body, err := util.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	var out []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: u.url,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": "image/png"},
		Body:       body,
		Response:   &out,
		Timeout:    u.timeout,
	}
	if err := u.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	res, _, err := util.DecodeImage(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	return plane.ToNRGBA(res), nil
}

// Strategy is one way of enhancing an image.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error)
}

// Enhancer tries its strategies in order. Callers only see which one ran.
type Enhancer struct {
	strategies []Strategy
}

// NewEnhancer puts super-resolution first when upscaler is not nil, then the
// classical fallback and finally a plain Lanczos resample.
func NewEnhancer(upscaler Upscaler) *Enhancer {
	var s []Strategy
	if upscaler != nil {
		s = append(s, Strategy{Name: StrategySuperResolution, Run: superResolution(upscaler)})
	}
	s = append(s,
		Strategy{Name: StrategyFallback, Run: func(_ context.Context, img *image.NRGBA) (*image.NRGBA, error) { return Fallback(img) }},
		Strategy{Name: StrategyLanczos, Run: func(_ context.Context, img *image.NRGBA) (*image.NRGBA, error) { return Lanczos(img) }},
	)
	return &Enhancer{strategies: s}
}

// NewEnhancerWith builds an enhancer from explicit strategies.
func NewEnhancerWith(strategies ...Strategy) *Enhancer {
	return &Enhancer{strategies: strategies}
}

// Strategies lists the strategy names in the order they are tried.
func (e *Enhancer) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name
	}
	return names
}

func (e *Enhancer) Enhance(ctx context.Context, img *image.NRGBA) (*image.NRGBA, string, error) {
	if plane.Empty(img.Bounds()) {
		return nil, "", imgerr.Degenerate("cannot enhance an empty image")
	}
	var lastErr error
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		out, err := s.Run(ctx, img)
		if err == nil {
			return out, s.Name, nil
		}
		util.Logger.Warn("enhancement strategy failed", zap.String("strategy", s.Name), zap.Error(err))
		lastErr = err
	}
	if lastErr == nil {
		return nil, "", imgerr.Failure("no enhancement strategy configured")
	}
	return nil, "", lastErr
}

// superResolution runs the model on the opaque color and resizes alpha
// linearly to whatever size the model returned.
func superResolution(u Upscaler) func(context.Context, *image.NRGBA) (*image.NRGBA, error) {
	return func(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error) {
		ch := plane.Split(img)
		up, err := u.Upscale(ctx, plane.Merge(ch[0], ch[1], ch[2], nil))
		if err != nil {
			return nil, err
		}
		if plane.Empty(up.Bounds()) {
			return nil, imgerr.Failure("upscaler returned an empty image")
		}
		alpha := image.NewGray(image.Rect(0, 0, up.Bounds().Dx(), up.Bounds().Dy()))
		draw.BiLinear.Scale(alpha, alpha.Bounds(), ch[3], ch[3].Bounds(), draw.Src, nil)
		rgb := plane.Split(up)
		return plane.Merge(rgb[0], rgb[1], rgb[2], alpha), nil
	}
}
