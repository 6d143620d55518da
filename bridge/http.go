package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sthembisoo/reportit/report"
)

// HTTPBridge posts each report as JSON to a collector endpoint
type HTTPBridge struct {
	endpoint string
	client   *resty.Client
}

// NewHTTPBridge creates an HTTP bridge. Every attempt is bounded by timeout;
// a non-positive timeout falls back to one second.
func NewHTTPBridge(endpoint string, timeout time.Duration) *HTTPBridge {
	if timeout <= 0 {
		timeout = time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPBridge{
		endpoint: endpoint,
		client:   client,
	}
}

// Name implements Bridge
func (b *HTTPBridge) Name() string { return "http" }

// Endpoint returns the collector URL
func (b *HTTPBridge) Endpoint() string { return b.endpoint }

// Send implements Bridge
func (b *HTTPBridge) Send(ctx context.Context, r *report.Report) error {
	body, err := r.JSON()
	if err != nil {
		return &DeliveryError{Bridge: b.Name(), Err: err}
	}

	response, err := b.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(b.endpoint)
	if err != nil {
		return &DeliveryError{Bridge: b.Name(), Err: err}
	}

	if response.IsError() {
		return &DeliveryError{
			Bridge: b.Name(),
			Err:    fmt.Errorf("collector returned status %d: %s", response.StatusCode(), string(response.Body())),
		}
	}

	return nil
}
