package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/util"
)

const (
	DefaultMaxBatch = 10
	DefaultWorkers  = 4

	StatusSuccess = "success"
	StatusError   = "error"
)

// Item is one uploaded file of a batch. Err is a rejection found while
// reading the upload; such an item fails with it and is never decoded.
type Item struct {
	Filename    string
	ContentType string
	Data        []byte
	Err         error
}

// Record is the outcome of one item. Image holds a PNG data URI on success.
type Record struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Image    string `json:"image,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type Report struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Record `json:"results"`
}

type BatchOptions struct {
	Options
	Workers  int
	MaxItems int
}

func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Options: RemoveOptions(), Workers: DefaultWorkers, MaxItems: DefaultMaxBatch}
}

// Batch processes every item on at most Workers goroutines. An item's
// failure lands in its record and never stops its siblings; only invalid
// options or an oversized batch fail the call.
func (p *Processor) Batch(ctx context.Context, items []Item, o BatchOptions) (*Report, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if o.MaxItems > 0 && len(items) > o.MaxItems {
		return nil, imgerr.Invalid("maximum %d images per batch, got %d", o.MaxItems, len(items))
	}

	records := make([]Record, len(items))
	var ok atomic.Int64

	var g errgroup.Group
	g.SetLimit(max(o.Workers, 1))
	for i, item := range items {
		g.Go(func() error {
			records[i] = p.processItem(ctx, item, o.Options)
			if records[i].Status == StatusSuccess {
				ok.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Total:      len(items),
		Successful: int(ok.Load()),
		Results:    records,
	}
	report.Failed = report.Total - report.Successful
	util.Logger.Info("batch complete",
		zap.Int("total", report.Total),
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (p *Processor) processItem(ctx context.Context, item Item, o Options) Record {
	rec := Record{ID: ksuid.New().String(), Filename: item.Filename}
	fail := func(err error) Record {
		util.Logger.Warn("batch item failed", zap.String("id", rec.ID), zap.String("filename", item.Filename), zap.Error(err))
		rec.Status = StatusError
		rec.Error = err.Error()
		return rec
	}

	if item.Err != nil {
		return fail(item.Err)
	}
	if item.ContentType != "" && !strings.HasPrefix(item.ContentType, "image/") {
		return fail(imgerr.Invalid("not an image file"))
	}
	img, _, err := util.DecodeImage(bytes.NewReader(item.Data))
	if err != nil {
		return fail(imgerr.Invalid("not an image file: %v", err))
	}
	res, err := p.Process(ctx, img, o)
	if err != nil {
		return fail(err)
	}
	encoded, err := util.EncodePNGBase64(res.Image)
	if err != nil {
		return fail(err)
	}
	rec.Status = StatusSuccess
	rec.Image = fmt.Sprintf("data:image/png;base64,%s", encoded)
	rec.Width = res.Image.Bounds().Dx()
	rec.Height = res.Image.Bounds().Dy()
	return rec
}
