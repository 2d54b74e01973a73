package handler

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/cutout/edge"
	"github.com/chaos-io/cutout/enhance"
	"github.com/chaos-io/cutout/filter"
	"github.com/chaos-io/cutout/freq"
	"github.com/chaos-io/cutout/histogram"
	"github.com/chaos-io/cutout/morph"
)

// Model names used in health reports. Probes registered on the health
// monitor must use the same names.
const (
	ModelSaliency = "saliency"
	ModelUpscaler = "upscaler"
)

var segmentationMethods = []string{"otsu", "adaptive", "color", "kmeans", "watershed", "region"}

type HealthResponse struct {
	Status       string          `json:"status"`
	ModelsLoaded map[string]bool `json:"models_loaded"`
}

type StatusResponse struct {
	APIStatus           string            `json:"api_status"`
	Models              map[string]string `json:"models"`
	Cache               bool              `json:"cache"`
	HistogramMethods    []string          `json:"histogram_methods"`
	SpatialFilters      []string          `json:"spatial_filters"`
	FrequencyFilters    []string          `json:"frequency_filters"`
	EdgeDetectors       []string          `json:"edge_detectors"`
	SegmentationMethods []string          `json:"segmentation_methods"`
	MorphologyOps       []string          `json:"morphology_operations"`
	Enhancement         []string          `json:"enhancement_strategies"`
}

// modelsLoaded reports the configured models. Probe results override the
// local view once the health monitor has run.
func (h *Handler) modelsLoaded() map[string]bool {
	loaded := map[string]bool{
		ModelSaliency: h.proc.Session().Available(),
		ModelUpscaler: slices.Contains(h.proc.Enhancer().Strategies(), enhance.StrategySuperResolution),
	}
	if h.health != nil {
		for name, ok := range h.health.Status() {
			loaded[name] = loaded[name] && ok
		}
	}
	return loaded
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		ModelsLoaded: h.modelsLoaded(),
	})
}

// Status lists the methods of each processing family and the model state.
func (h *Handler) Status(c *gin.Context) {
	models := make(map[string]string)
	for name, ok := range h.modelsLoaded() {
		models[name] = "not_loaded"
		if ok {
			models[name] = "loaded"
		}
	}
	c.JSON(http.StatusOK, StatusResponse{
		APIStatus:           "online",
		Models:              models,
		Cache:               h.cache.Enabled(),
		HistogramMethods:    names(histogram.Methods()),
		SpatialFilters:      names(filter.Kinds()),
		FrequencyFilters:    names(freq.Kinds()),
		EdgeDetectors:       names(edge.Methods()),
		SegmentationMethods: segmentationMethods,
		MorphologyOps:       names(morph.Ops()),
		Enhancement:         h.proc.Enhancer().Strategies(),
	})
}

func names[T interface{ String() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}
