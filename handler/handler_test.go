package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/imgerr"
	"github.com/chaos-io/cutout/pipeline"
	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/service"
	"github.com/chaos-io/cutout/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type centerModel struct{}

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

func newRouter(t *testing.T, withModel bool) *gin.Engine {
	t.Helper()
	cfg := config.Default()

	var session *rembg.Session
	if withModel {
		s, err := rembg.NewSession(centerModel{}, rembg.Options{InputSize: 32, Threshold: rembg.DefaultThresholdParams()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		session = s
	}

	h := New(cfg, pipeline.NewProcessor(session, nil, nil), service.NewResultCache(&cfg.Redis), nil)
	r := gin.New()
	h.Register(r)
	return r
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(30)
			if x >= w/4 && x < 3*w/4 && y >= h/4 && y < 3*h/4 {
				v = 220
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: uint8(x * 3), A: 255})
		}
	}
	return img
}

type part struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func pngPart(t *testing.T, field string, img image.Image) part {
	t.Helper()
	data, err := util.EncodePNG(img)
	require.NoError(t, err)
	return part{field: field, filename: field + ".png", contentType: "image/png", data: data}
}

func postForm(t *testing.T, r http.Handler, path string, parts []part, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		hdr.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodePNG(t *testing.T, rec *httptest.ResponseRecorder) image.Image {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, format, err := util.DecodeImage(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	return img
}

func TestStatusOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{imgerr.Invalid("x"), http.StatusBadRequest},
		{imgerr.Degenerate("x"), http.StatusUnprocessableEntity},
		{imgerr.Failure("x"), http.StatusInternalServerError},
		{imgerr.Unavailable("x"), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", imgerr.Invalid("x")), http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestHealthAndStatus(t *testing.T) {
	t.Parallel()

	r := newRouter(t, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.False(t, health.ModelsLoaded[ModelSaliency])
	assert.False(t, health.ModelsLoaded[ModelUpscaler])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "online", status.APIStatus)
	assert.Equal(t, "not_loaded", status.Models[ModelSaliency])
	assert.Equal(t, []string{"global", "adaptive", "clahe"}, status.HistogramMethods)
	assert.Equal(t, []string{"sobel", "prewitt", "canny", "laplacian"}, status.EdgeDetectors)
	assert.Contains(t, status.MorphologyOps, "tophat")
	assert.Len(t, status.SpatialFilters, 7)
	assert.Equal(t, []string{"fallback", "lanczos"}, status.Enhancement)
	assert.False(t, status.Cache)
}

func TestRemoveBackground(t *testing.T) {
	t.Parallel()

	r := newRouter(t, true)
	rec := postForm(t, r, "/api/remove-background", []part{pngPart(t, "file", testImage(40, 40))}, nil)
	img := decodePNG(t, rec)
	assert.Equal(t, image.Rect(0, 0, 40, 40), img.Bounds())

	_, _, _, corner := img.At(0, 0).RGBA()
	_, _, _, center := img.At(20, 20).RGBA()
	assert.Less(t, corner, center)
}

func TestRemoveBackground_NoModel(t *testing.T) {
	t.Parallel()

	r := newRouter(t, false)
	rec := postForm(t, r, "/api/remove-background", []part{pngPart(t, "file", testImage(16, 16))}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "model unavailable")
}

func TestUploadValidation(t *testing.T) {
	t.Parallel()

	r := newRouter(t, false)
	tests := []struct {
		name  string
		parts []part
	}{
		{"missing file", nil},
		{"text file", []part{{field: "file", filename: "a.txt", contentType: "text/plain", data: []byte("hello")}}},
		{"corrupt image", []part{{field: "file", filename: "a.png", contentType: "image/png", data: []byte("not a png")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(t, r, "/api/gamma", tt.parts, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProcessAdvanced(t *testing.T) {
	t.Parallel()

	r := newRouter(t, true)
	fields := map[string]string{"add_bg_color": "true", "bg_color": "0,0,255", "padding": "0"}
	img := decodePNG(t, postForm(t, r, "/api/process-advanced", []part{pngPart(t, "file", testImage(40, 40))}, fields))
	assert.Less(t, img.Bounds().Dx(), 40, "cropped to the subject")
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a, "background color is opaque")

	fields["bg_color"] = "blue"
	rec := postForm(t, r, "/api/process-advanced", []part{pngPart(t, "file", testImage(40, 40))}, fields)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(t, r, "/api/process-advanced", []part{pngPart(t, "file", testImage(40, 40))}, map[string]string{"auto_crop": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnhanceImage(t *testing.T) {
	t.Parallel()

	r := newRouter(t, false)
	rec := postForm(t, r, "/api/enhance-image", []part{pngPart(t, "file", testImage(12, 10))}, nil)
	img := decodePNG(t, rec)
	assert.Equal(t, image.Rect(0, 0, 24, 20), img.Bounds())
	assert.Equal(t, "fallback", rec.Header().Get("X-Enhancement"))
}

func TestBatchProcess(t *testing.T) {
	t.Parallel()

	r := newRouter(t, true)
	parts := []part{
		pngPart(t, "files", testImage(16, 16)),
		pngPart(t, "files", testImage(20, 12)),
		{field: "files", filename: "notes.txt", contentType: "text/plain", data: []byte("hello")},
		pngPart(t, "files", testImage(24, 8)),
	}
	rec := postForm(t, r, "/api/batch-process", parts, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report pipeline.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, pipeline.StatusError, report.Results[2].Status)
	assert.Contains(t, report.Results[2].Error, "not an image")

	rec = postForm(t, r, "/api/batch-process", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilterEndpoints(t *testing.T) {
	t.Parallel()

	r := newRouter(t, false)
	tests := []struct {
		path   string
		fields map[string]string
		status int
	}{
		{"/api/histogram-equalization", nil, http.StatusOK},
		{"/api/histogram-equalization", map[string]string{"method": "global"}, http.StatusOK},
		{"/api/histogram-equalization", map[string]string{"method": "magic"}, http.StatusBadRequest},
		{"/api/adjust-brightness-contrast", map[string]string{"brightness": "20", "contrast": "1.2", "gamma": "0.8"}, http.StatusOK},
		{"/api/adjust-brightness-contrast", map[string]string{"contrast": "9"}, http.StatusBadRequest},
		{"/api/gamma", map[string]string{"gamma": "2.2"}, http.StatusOK},
		{"/api/gamma", map[string]string{"gamma": "abc"}, http.StatusBadRequest},
		{"/api/spatial-filter", nil, http.StatusOK},
		{"/api/spatial-filter", map[string]string{"filter_type": "median", "kernel_size": "5"}, http.StatusOK},
		{"/api/spatial-filter", map[string]string{"filter_type": "mean", "kernel_size": "4"}, http.StatusBadRequest},
		{"/api/spatial-filter", map[string]string{"filter_type": "emboss"}, http.StatusBadRequest},
		{"/api/frequency-filter", nil, http.StatusOK},
		{"/api/frequency-filter", map[string]string{"filter_type": "bandpass", "low_cutoff": "60", "high_cutoff": "20"}, http.StatusBadRequest},
		{"/api/edge-detection", nil, http.StatusOK},
		{"/api/edge-detection", map[string]string{"method": "sobel", "kernel_size": "4"}, http.StatusBadRequest},
		{"/api/segment-threshold", map[string]string{"method": "adaptive", "block_size": "7"}, http.StatusOK},
		{"/api/segment-threshold", map[string]string{"method": "triangle"}, http.StatusBadRequest},
		{"/api/segment-color", map[string]string{"lower_h": "0", "upper_h": "179"}, http.StatusOK},
		{"/api/segment-kmeans", map[string]string{"k": "2"}, http.StatusOK},
		{"/api/segment-kmeans", map[string]string{"k": "0"}, http.StatusBadRequest},
		{"/api/segment-watershed", nil, http.StatusOK},
		{"/api/segment-region", map[string]string{"seed_x": "1", "seed_y": "1"}, http.StatusOK},
		{"/api/segment-region", map[string]string{"threshold": "-3"}, http.StatusBadRequest},
		{"/api/morphology", nil, http.StatusOK},
		{"/api/morphology", map[string]string{"operation": "thinning"}, http.StatusBadRequest},
		{"/api/morphology", map[string]string{"steps": `[{"type":"closing","kernel_size":3},{"type":"gradient","kernel_size":3}]`}, http.StatusOK},
		{"/api/morphology", map[string]string{"steps": `[{"type":"closing","kernel_size":0}]`}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %v", tt.path, tt.fields), func(t *testing.T) {
			rec := postForm(t, r, tt.path, []part{pngPart(t, "file", testImage(24, 24))}, tt.fields)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				img := decodePNG(t, rec)
				assert.Equal(t, image.Rect(0, 0, 24, 24), img.Bounds())
			}
		})
	}
}

func TestSegmentThreshold_Otsu(t *testing.T) {
	t.Parallel()

	r := newRouter(t, false)
	rec := postForm(t, r, "/api/segment-threshold", []part{pngPart(t, "file", testImage(24, 24))}, nil)
	img := decodePNG(t, rec)
	assert.NotEmpty(t, rec.Header().Get("X-Threshold"))

	g, ok := img.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(0), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), g.GrayAt(12, 12).Y)
}

func TestHistogramMatching(t *testing.T) {
	t.Parallel()

	r := newRouter(t, false)
	src := pngPart(t, "file", testImage(24, 24))
	ref := pngPart(t, "reference", testImage(16, 16))

	img := decodePNG(t, postForm(t, r, "/api/histogram-matching", []part{src, ref}, nil))
	assert.Equal(t, image.Rect(0, 0, 24, 24), img.Bounds())

	rec := postForm(t, r, "/api/histogram-matching", []part{src}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareEdgeDetectors(t *testing.T) {
	t.Parallel()

	r := newRouter(t, false)
	rec := postForm(t, r, "/api/compare-edge-detectors", []part{pngPart(t, "file", testImage(24, 24))}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp compareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "file.png", resp.Filename)
	assert.Len(t, resp.Results, 4)
	for name, uri := range resp.Results {
		assert.Contains(t, uri, "data:image/png;base64,", name)
	}
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*service.Result
	hits    int
}

func (m *memCache) Enabled() bool { return true }

func (m *memCache) Get(_ context.Context, key string) (*service.Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.entries[key]
	if ok {
		m.hits++
	}
	return res, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, res *service.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = res
	return nil
}

func TestCachedResultKeepsHeaders(t *testing.T) {
	t.Parallel()

	cache := &memCache{entries: make(map[string]*service.Result)}
	h := New(config.Default(), pipeline.NewProcessor(nil, nil, nil), nil, nil)
	h.cache = cache
	r := gin.New()
	h.Register(r)

	tests := []struct {
		path   string
		header string
	}{
		{path: "/api/segment-threshold", header: "X-Threshold"},
		{path: "/api/enhance-image", header: "X-Enhancement"},
	}
	for _, tt := range tests {
		file := []part{pngPart(t, "file", testImage(24, 24))}
		first := postForm(t, r, tt.path, file, nil)
		require.Equal(t, http.StatusOK, first.Code, first.Body.String())
		require.NotEmpty(t, first.Header().Get(tt.header))

		hits := cache.hits
		second := postForm(t, r, tt.path, file, nil)
		require.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, hits+1, cache.hits, tt.path)
		assert.Equal(t, first.Header().Get(tt.header), second.Header().Get(tt.header), tt.path)
		assert.Equal(t, first.Body.Bytes(), second.Body.Bytes(), tt.path)
	}
}

func noisyImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	seed := uint32(1)
	for i := range img.Pix {
		seed = seed*1664525 + 1013904223
		img.Pix[i] = uint8(seed >> 24)
	}
	return img
}

func TestBatchProcess_OversizedFile(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Upload.MaxSize = 8 * 1024
	session, err := rembg.NewSession(centerModel{}, rembg.Options{InputSize: 32, Threshold: rembg.DefaultThresholdParams()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	h := New(cfg, pipeline.NewProcessor(session, nil, nil), nil, nil)
	r := gin.New()
	h.Register(r)

	big := pngPart(t, "files", noisyImage(96, 96))
	big.filename = "big.png"
	require.Greater(t, int64(len(big.data)), cfg.Upload.MaxSize)

	rec := postForm(t, r, "/api/batch-process", []part{big, pngPart(t, "files", testImage(16, 16))}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report pipeline.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Results, 2)
	assert.Equal(t, "big.png", report.Results[0].Filename)
	assert.Equal(t, pipeline.StatusError, report.Results[0].Status)
	assert.Equal(t, "invalid parameter: file exceeds the 8192 byte limit", report.Results[0].Error)
	assert.Equal(t, pipeline.StatusSuccess, report.Results[1].Status)

	single := postForm(t, r, "/api/remove-background", []part{{field: "file", filename: "big.png", contentType: "image/png", data: big.data}}, nil)
	assert.Equal(t, http.StatusBadRequest, single.Code)
	assert.Contains(t, single.Body.String(), "8192 byte limit")
}
