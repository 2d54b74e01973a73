package rembg

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/plane"
	"github.com/chaos-io/cutout/util"
)

// MaskFloor is the highest mask value Mask clears to zero, so resampling
// ringing and feather tails never reach the image frame.
const MaskFloor = 8

// Model predicts a saliency map for a normalized input tensor.
type Model interface {
	Predict(ctx context.Context, t *Tensor) (*SaliencyMap, error)
}

type Options struct {
	InputSize int
	Threshold ThresholdParams
	// Clean runs CleanMask on the binarized mask before it is resized.
	Clean bool
}

func DefaultOptions() Options {
	return Options{InputSize: DefaultInputSize, Threshold: DefaultThresholdParams(), Clean: true}
}

// Session owns a loaded model. It is safe for concurrent use; Close waits
// for in-flight predictions.
type Session struct {
	mu     sync.RWMutex
	model  Model
	opts   Options
	closed bool
}

func NewSession(model Model, opts Options) (*Session, error) {
	if model == nil {
		return nil, imgerr.Unavailable("no saliency model configured")
	}
	if opts.InputSize < 1 {
		return nil, imgerr.Invalid("model input size must be positive, got %d", opts.InputSize)
	}
	if err := opts.Threshold.Validate(); err != nil {
		return nil, err
	}
	return &Session{model: model, opts: opts}, nil
}

// Available reports whether Remove can run.
func (s *Session) Available() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Mask predicts the subject mask of img at img's own size.
func (s *Session) Mask(ctx context.Context, img image.Image) (*image.Gray, error) {
	if s == nil {
		return nil, imgerr.Unavailable("saliency model is not loaded")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, imgerr.Unavailable("saliency session is closed")
	}

	t, err := NewTensor(img, s.opts.InputSize)
	if err != nil {
		return nil, err
	}
	sal, err := s.model.Predict(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%w: saliency prediction: %w", imgerr.ErrProcessingFailure, err)
	}
	mask, err := Binarize(sal, s.opts.Threshold)
	if err != nil {
		return nil, err
	}
	if s.opts.Clean {
		mask = CleanMask(mask)
	}

	b := img.Bounds()
	if mask.Bounds().Dx() != b.Dx() || mask.Bounds().Dy() != b.Dy() {
		mask = plane.ToGray(resize.Resize(uint(b.Dx()), uint(b.Dy()), mask, resize.Lanczos3))
	}
	return plane.ClearFaint(mask, MaskFloor), nil
}

// Remove returns img with the predicted mask as its alpha channel.
func (s *Session) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	mask, err := s.Mask(ctx, img)
	if err != nil {
		return nil, err
	}
	src := plane.ToNRGBA(img)
	ch := plane.Split(src)
	return plane.Merge(ch[0], ch[1], ch[2], mask), nil
}

// Close releases the model. Later calls report ErrModelUnavailable.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.model.(io.Closer); ok {
		if err := c.Close(); err != nil {
			util.Logger.Warn("close saliency model", zap.Error(err))
			return err
		}
	}
	return nil
}
