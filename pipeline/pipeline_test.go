package pipeline

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/util"
)

type centerModel struct{}

// Predict marks the centre quarter of the input as salient.
func (centerModel) Predict(_ context.Context, t *rembg.Tensor) (*rembg.SaliencyMap, error) {
	n := t.Size
	m := &rembg.SaliencyMap{Width: n, Height: n, Values: make([]float32, n*n)}
	for y := n / 4; y < 3*n/4; y++ {
		for x := n / 4; x < 3*n/4; x++ {
			m.Values[y*n+x] = 1
		}
	}
	return m, nil
}

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	s, err := rembg.NewSession(centerModel{}, rembg.Options{InputSize: 32, Threshold: rembg.DefaultThresholdParams()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewProcessor(s, nil, nil)
}

func opaque(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: 90, B: uint8(y * 4), A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := util.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func TestProcess_RemoveAndCrop(t *testing.T) {
	t.Parallel()

	p := newProcessor(t)
	o := AdvancedOptions()
	o.Padding = 0
	res, err := p.Process(context.Background(), opaque(64, 64), o)
	require.NoError(t, err)
	assert.False(t, res.RemovalSkipped)
	assert.Equal(t, cutout.StrategyFull, res.Refinement)
	assert.Empty(t, res.Enhancement)

	b := res.Image.Bounds()
	assert.Less(t, b.Dx(), 64)
	assert.Less(t, b.Dy(), 64)
	assert.Equal(t, uint8(255), res.Image.NRGBAAt(b.Dx()/2, b.Dy()/2).A)
}

func TestProcess_CropsWithSmallModelInput(t *testing.T) {
	t.Parallel()

	s, err := rembg.NewSession(centerModel{}, rembg.Options{InputSize: 32, Threshold: rembg.DefaultThresholdParams(), Clean: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	p := NewProcessor(s, nil, nil)

	for _, n := range []int{40, 200, 640} {
		o := AdvancedOptions()
		o.Padding = 0
		res, err := p.Process(context.Background(), opaque(n, n), o)
		require.NoError(t, err)
		b := res.Image.Bounds()
		assert.Less(t, b.Dx(), n, "n=%d", n)
		assert.Less(t, b.Dy(), n, "n=%d", n)
		assert.Equal(t, uint8(255), res.Image.NRGBAAt(b.Dx()/2, b.Dy()/2).A, "n=%d", n)
	}
}

func TestProcess_SkipsRemovalWithAlpha(t *testing.T) {
	t.Parallel()

	img := opaque(20, 10)
	img.SetNRGBA(0, 0, color.NRGBA{A: 0})

	// no session: removal must not be attempted
	p := NewProcessor(nil, nil, nil)
	res, err := p.Process(context.Background(), img, Options{})
	require.NoError(t, err)
	assert.True(t, res.RemovalSkipped)
	assert.Equal(t, img.Pix, res.Image.Pix)
}

func TestProcess_BackgroundAndEnhance(t *testing.T) {
	t.Parallel()

	p := newProcessor(t)
	bg := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	o := RemoveOptions()
	o.Background = &bg
	o.Enhance = true
	res, err := p.Process(context.Background(), opaque(24, 16), o)
	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Enhancement)
	assert.Equal(t, image.Rect(0, 0, 48, 32), res.Image.Bounds())
	assert.InDelta(t, 255, int(res.Image.NRGBAAt(0, 0).A), 1)
}

func TestProcess_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewProcessor(nil, nil, nil).Process(context.Background(), opaque(8, 8), RemoveOptions())
	assert.ErrorIs(t, err, imgerr.ErrModelUnavailable)

	p := newProcessor(t)
	o := RemoveOptions()
	o.Refine = &cutout.RefineParams{Strength: 9}
	_, err = p.Process(context.Background(), opaque(8, 8), o)
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)

	_, err = p.Process(context.Background(), image.NewNRGBA(image.Rectangle{}), RemoveOptions())
	assert.ErrorIs(t, err, imgerr.ErrDegenerateInput)
}

func TestBatch_IsolatesFailures(t *testing.T) {
	t.Parallel()

	p := newProcessor(t)
	items := []Item{
		{Filename: "a.png", ContentType: "image/png", Data: pngBytes(t, opaque(16, 16))},
		{Filename: "b.png", ContentType: "image/png", Data: pngBytes(t, opaque(20, 12))},
		{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
		{Filename: "c.png", Data: pngBytes(t, opaque(8, 24))},
	}
	report, err := p.Batch(context.Background(), items, DefaultBatchOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.Successful)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 4)

	failed := report.Results[2]
	assert.Equal(t, "notes.txt", failed.Filename)
	assert.Equal(t, StatusError, failed.Status)
	assert.Contains(t, failed.Error, "not an image")

	for _, i := range []int{0, 1, 3} {
		r := report.Results[i]
		assert.Equal(t, StatusSuccess, r.Status, r.Filename)
		assert.True(t, strings.HasPrefix(r.Image, "data:image/png;base64,"))
		assert.NotEmpty(t, r.ID)
	}
	assert.Equal(t, 20, report.Results[1].Width)
	assert.Equal(t, 12, report.Results[1].Height)
}

func TestBatch_Limits(t *testing.T) {
	t.Parallel()

	p := newProcessor(t)
	items := make([]Item, DefaultMaxBatch+1)
	_, err := p.Batch(context.Background(), items, DefaultBatchOptions())
	assert.ErrorIs(t, err, imgerr.ErrInvalidParameter)

	o := DefaultBatchOptions()
	o.Workers = 1
	report, err := p.Batch(context.Background(), []Item{{Filename: "empty.png"}}, o)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
}

func TestBatch_ItemErrorKeepsMessage(t *testing.T) {
	t.Parallel()

	p := newProcessor(t)
	items := []Item{
		{Filename: "huge.png", ContentType: "image/png", Err: imgerr.Invalid("file exceeds the 20 MB limit")},
		{Filename: "a.png", ContentType: "image/png", Data: pngBytes(t, opaque(16, 16))},
	}
	report, err := p.Batch(context.Background(), items, DefaultBatchOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Successful)

	rec := report.Results[0]
	assert.Equal(t, "huge.png", rec.Filename)
	assert.Equal(t, StatusError, rec.Status)
	assert.Contains(t, rec.Error, "exceeds the 20 MB limit")
	assert.NotContains(t, rec.Error, "not an image")
	assert.Equal(t, StatusSuccess, report.Results[1].Status)
}
