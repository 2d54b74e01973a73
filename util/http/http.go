// Package http is the outbound client shared by the remote model adapters:
// JSON tensors go out to the saliency server and PNG bytes to the upscaler.
package http

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// IClient sends one request and decodes its answer into RequestParam.Response.
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam describes one outbound call. Body may be nil, an io.Reader,
// a []byte or any JSON-marshalable value. Response may be nil, a *[]byte for
// the raw payload, or a pointer the JSON payload decodes into.
type RequestParam struct {
	Method     string
	RequestURI string
	Header     map[string]string

	Body     interface{}
	Response interface{}

	// Timeout bounds this call only; zero keeps the client default.
	Timeout time.Duration
}

// StatusError is returned when the server answers outside 2xx.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
