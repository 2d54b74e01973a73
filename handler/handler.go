package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/middleware"
	"github.com/chaos-io/cutout/pipeline"
	"github.com/chaos-io/cutout/service"
	"github.com/chaos-io/cutout/util"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// resultCache is the part of service.ResultCache the handlers use.
type resultCache interface {
	Enabled() bool
	Get(ctx context.Context, key string) (*service.Result, bool, error)
	Set(ctx context.Context, key string, res *service.Result) error
}

type Handler struct {
	cfg    *config.Config
	proc   *pipeline.Processor
	cache  resultCache
	health *service.HealthMonitor
}

// New builds the handler. cache and health may be nil.
func New(cfg *config.Config, proc *pipeline.Processor, cache *service.ResultCache, health *service.HealthMonitor) *Handler {
	return &Handler{
		cfg:    cfg,
		proc:   proc,
		cache:  cache,
		health: health,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/status", h.Status)

		api.POST("/remove-background", h.RemoveBackground)
		api.POST("/enhance-image", h.EnhanceImage)
		api.POST("/process-advanced", h.ProcessAdvanced)
		api.POST("/batch-process", h.BatchProcess)

		api.POST("/histogram-equalization", h.HistogramEqualization)
		api.POST("/histogram-matching", h.HistogramMatching)
		api.POST("/adjust-brightness-contrast", h.BrightnessContrast)
		api.POST("/gamma", h.Gamma)

		api.POST("/spatial-filter", h.SpatialFilter)
		api.POST("/frequency-filter", h.FrequencyFilter)

		api.POST("/edge-detection", h.EdgeDetection)
		api.POST("/compare-edge-detectors", h.CompareEdgeDetectors)

		api.POST("/segment-threshold", h.SegmentThreshold)
		api.POST("/segment-color", h.SegmentColor)
		api.POST("/segment-kmeans", h.SegmentKMeans)
		api.POST("/segment-watershed", h.SegmentWatershed)
		api.POST("/segment-region", h.SegmentRegion)

		api.POST("/morphology", h.Morphology)
	}
}

// statusOf maps an error kind onto its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, imgerr.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, imgerr.ErrDegenerateInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, imgerr.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		util.Logger.Error("request failed", zap.String("op", op), zap.String("request_id", c.GetString(middleware.RequestIDKey)), zap.Error(err))
	} else {
		util.Logger.Info("request rejected", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{
		Success: false,
		Message: fmt.Sprintf("%s failed", op),
		Error:   err.Error(),
	})
}

// upload is one decoded multipart file.
type upload struct {
	filename string
	data     []byte
	img      image.Image
}

func (h *Handler) readUpload(c *gin.Context, field string) (*upload, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, imgerr.Invalid("missing upload field %q", field)
	}
	if err := h.checkSize(file.Size); err != nil {
		return nil, err
	}
	if !h.isAllowedType(file.Header.Get("Content-Type")) {
		return nil, imgerr.Invalid("file must be an image")
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	img, _, err := util.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, imgerr.Invalid("file must be an image: %v", err)
	}
	return &upload{filename: file.Filename, data: data, img: img}, nil
}

func (h *Handler) checkSize(size int64) error {
	limit := h.cfg.Upload.MaxSize
	switch {
	case limit <= 0 || size <= limit:
		return nil
	case limit >= 1<<20:
		return imgerr.Invalid("file exceeds the %d MB limit", limit>>20)
	default:
		return imgerr.Invalid("file exceeds the %d byte limit", limit)
	}
}

func (h *Handler) isAllowedType(contentType string) bool {
	if len(h.cfg.Upload.AllowedTypes) == 0 {
		return strings.HasPrefix(contentType, "image/")
	}
	return slices.Contains(h.cfg.Upload.AllowedTypes, contentType)
}

// resultHeaders are the response headers handlers set to describe a result.
// They are cached with the PNG and replayed on a hit.
var resultHeaders = []string{"X-Threshold", "X-Removal-Skipped", "X-Enhancement"}

// serveImage runs fn on the "file" upload and answers with a PNG. Results
// are cached under the upload hash plus params.
func (h *Handler) serveImage(c *gin.Context, op string, params string, fn func(ctx context.Context, img image.Image) (image.Image, error)) {
	up, err := h.readUpload(c, "file")
	if err != nil {
		h.fail(c, op, err)
		return
	}

	ctx := c.Request.Context()
	key := service.Key(op, up.data, params)
	if res, ok, err := h.cache.Get(ctx, key); err != nil {
		util.Logger.Warn("failed to get cache", zap.String("key", key), zap.Error(err))
	} else if ok {
		util.Logger.Debug("cache hit", zap.String("key", key))
		for k, v := range res.Header {
			c.Header(k, v)
		}
		c.Data(http.StatusOK, "image/png", res.PNG)
		return
	}

	out, err := fn(ctx, up.img)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	data, err := util.EncodePNG(out)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	res := &service.Result{PNG: data}
	for _, k := range resultHeaders {
		if v := c.Writer.Header().Get(k); v != "" {
			if res.Header == nil {
				res.Header = make(map[string]string)
			}
			res.Header[k] = v
		}
	}
	_ = h.cache.Set(ctx, key, res)

	util.Logger.Info("image processed", zap.String("op", op), zap.String("filename", up.filename),
		zap.Int("width", out.Bounds().Dx()), zap.Int("height", out.Bounds().Dy()))
	c.Data(http.StatusOK, "image/png", data)
}

// form reads optional form values, keeping the first parse error.
type form struct {
	c   *gin.Context
	err error
}

func (f *form) value(name string) (string, bool) {
	v, ok := f.c.GetPostForm(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (f *form) String(name, def string) string {
	if v, ok := f.value(name); ok {
		return v
	}
	return def
}

func (f *form) Int(name string, def int) int {
	v, ok := f.value(name)
	if !ok || f.err != nil {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.err = imgerr.Invalid("%s must be an integer, got %q", name, v)
		return def
	}
	return n
}

func (f *form) Float(name string, def float64) float64 {
	v, ok := f.value(name)
	if !ok || f.err != nil {
		return def
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		f.err = imgerr.Invalid("%s must be a number, got %q", name, v)
		return def
	}
	return x
}

func (f *form) Bool(name string, def bool) bool {
	v, ok := f.value(name)
	if !ok || f.err != nil {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		f.err = imgerr.Invalid("%s must be a boolean, got %q", name, v)
		return def
	}
	return b
}
