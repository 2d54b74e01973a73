package rembg

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/chaos-io/cutout/imgerr"
	nhttp "github.com/chaos-io/cutout/util/http"
)

// HTTPModel calls a remote inference server that accepts a JSON tensor on
// <base>/predict and answers with a saliency map.
type HTTPModel struct {
	predictURL string
	healthURL  string
	timeout    time.Duration
	cli        nhttp.IClient
}

func NewHTTPModel(baseURL string, timeout time.Duration) (*HTTPModel, error) {
	predictURL, err := url.JoinPath(baseURL, "predict")
	if err != nil {
		return nil, fmt.Errorf("saliency model url: %w", err)
	}
	healthURL, err := url.JoinPath(baseURL, "health")
	if err != nil {
		return nil, fmt.Errorf("saliency model url: %w", err)
	}
	return &HTTPModel{
		predictURL: predictURL,
		healthURL:  healthURL,
		timeout:    timeout,
		cli:        nhttp.NewHTTPClient(),
	}, nil
}

type predictReq struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

func (m *HTTPModel) Predict(ctx context.Context, t *Tensor) (*SaliencyMap, error) {
	out := &SaliencyMap{}
	reqParam := &nhttp.RequestParam{
		RequestURI: m.predictURL,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       predictReq{Shape: t.Shape(), Data: t.Data},
		Response:   out,
		Timeout:    m.timeout,
	}
	if err := m.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, remoteErr(err)
	}
	return out, nil
}

// Ping checks that the inference server answers its health route.
func (m *HTTPModel) Ping(ctx context.Context) error {
	reqParam := &nhttp.RequestParam{
		RequestURI: m.healthURL,
		Method:     "GET",
		Timeout:    m.timeout,
	}
	if err := m.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return remoteErr(err)
	}
	return nil
}

// remoteErr marks a 503 from the inference server as a missing model.
func remoteErr(err error) error {
	if nhttp.IsStatus(err, http.StatusServiceUnavailable) {
		return fmt.Errorf("%w: %w", imgerr.ErrModelUnavailable, err)
	}
	return fmt.Errorf("do request: %w", err)
}
