package handler

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/pipeline"
	"github.com/chaos-io/cutout/util"
)

// removeOptions applies the configured pipeline limits to the remove preset.
func (h *Handler) removeOptions() pipeline.Options {
	o := pipeline.RemoveOptions()
	o.MaxDimension = h.cfg.Pipeline.MaxDimension
	o.Timeout = h.cfg.Pipeline.Timeout
	return o
}

// RemoveBackground answers with the subject on a transparent PNG.
func (h *Handler) RemoveBackground(c *gin.Context) {
	o := h.removeOptions()
	h.serveImage(c, "remove-background", "", func(ctx context.Context, img image.Image) (image.Image, error) {
		res, err := h.proc.Process(ctx, img, o)
		if err != nil {
			return nil, err
		}
		if res.RemovalSkipped {
			c.Header("X-Removal-Skipped", "true")
		}
		return res.Image, nil
	})
}

// EnhanceImage upscales the image, falling back to local enhancement when
// the model is unavailable.
func (h *Handler) EnhanceImage(c *gin.Context) {
	h.serveImage(c, "enhance-image", "", func(ctx context.Context, img image.Image) (image.Image, error) {
		res, err := h.proc.Enhance(ctx, img, h.cfg.Pipeline.Timeout)
		if err != nil {
			return nil, err
		}
		c.Header("X-Enhancement", res.Enhancement)
		return res.Image, nil
	})
}

// ProcessAdvanced removes the background, refines edges and crops, then
// optionally fills a background color and enhances.
func (h *Handler) ProcessAdvanced(c *gin.Context) {
	f := &form{c: c}
	crop := f.Bool("auto_crop", true)
	addBG := f.Bool("add_bg_color", false)
	bg := f.String("bg_color", "255,255,255")
	doEnhance := f.Bool("enhance", false)
	padding := f.Int("padding", h.cfg.Pipeline.Padding)
	strength := f.Int("strength", h.cfg.Refine.Strength)
	if f.err != nil {
		h.fail(c, "process-advanced", f.err)
		return
	}

	o := pipeline.AdvancedOptions()
	o.MaxDimension = h.cfg.Pipeline.MaxDimension
	o.Timeout = h.cfg.Pipeline.Timeout
	o.Refine = &cutout.RefineParams{Strength: strength}
	o.Crop = crop
	o.Padding = padding
	o.Enhance = doEnhance
	if addBG {
		col, err := cutout.ParseColor(bg)
		if err != nil {
			h.fail(c, "process-advanced", err)
			return
		}
		o.Background = &col
	}

	params := fmt.Sprintf("crop=%t,pad=%d,s=%d,bg=%t/%s,enh=%t", crop, padding, strength, addBG, bg, doEnhance)
	h.serveImage(c, "process-advanced", params, func(ctx context.Context, img image.Image) (image.Image, error) {
		res, err := h.proc.Process(ctx, img, o)
		if err != nil {
			return nil, err
		}
		util.Logger.Debug("advanced processing",
			zap.Bool("removal_skipped", res.RemovalSkipped),
			zap.String("refinement", res.Refinement),
			zap.String("enhancement", res.Enhancement))
		return res.Image, nil
	})
}

// BatchProcess removes backgrounds from many files. A failing file only
// fails its own record.
func (h *Handler) BatchProcess(c *gin.Context) {
	mf, err := c.MultipartForm()
	if err != nil {
		h.fail(c, "batch-process", imgerr.Invalid("multipart form required: %v", err))
		return
	}
	files := mf.File["files"]
	if len(files) == 0 {
		h.fail(c, "batch-process", imgerr.Invalid("no files uploaded"))
		return
	}

	items := make([]pipeline.Item, 0, len(files))
	for _, fh := range files {
		item := pipeline.Item{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type")}
		if err := h.checkSize(fh.Size); err != nil {
			item.Err = err
			items = append(items, item)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			h.fail(c, "batch-process", fmt.Errorf("open upload: %w", err))
			return
		}
		item.Data, err = io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			h.fail(c, "batch-process", fmt.Errorf("read upload: %w", err))
			return
		}
		items = append(items, item)
	}

	o := pipeline.DefaultBatchOptions()
	o.Options = h.removeOptions()
	o.Workers = h.cfg.Pipeline.Workers
	o.MaxItems = h.cfg.Upload.MaxBatch

	report, err := h.proc.Batch(c.Request.Context(), items, o)
	if err != nil {
		h.fail(c, "batch-process", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
