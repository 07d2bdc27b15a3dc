// Package relay delivers committed events to downstream services over HTTP.
//
// Deliveries are fire-and-forget: a failed POST is logged and recorded in
// metrics, but never fails the upstream command that produced the event.
// There is no persistence or retry; a missed delivery stays missed until
// the downstream service is resynced out of band.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	learnstream "github.com/learnstream/learnstream"
)

// DefaultTimeout bounds each delivery attempt.
const DefaultTimeout = 5 * time.Second

// DeliveryRecorder receives the outcome of each delivery attempt.
type DeliveryRecorder interface {
	RecordRelayDelivery(target string, duration time.Duration, success bool)
}

// Relay posts JSON payloads to a single downstream base URL.
type Relay struct {
	baseURL  string
	client   *http.Client
	headers  map[string]string
	logger   learnstream.Logger
	recorder DeliveryRecorder
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Relay) {
		r.client = client
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		r.client.Timeout = d
	}
}

// WithHeaders sets default headers added to all requests.
func WithHeaders(headers map[string]string) Option {
	return func(r *Relay) {
		for k, v := range headers {
			r.headers[k] = v
		}
	}
}

// WithLogger sets the logger for delivery outcomes.
func WithLogger(logger learnstream.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithRecorder sets the metrics recorder for delivery outcomes.
func WithRecorder(rec DeliveryRecorder) Option {
	return func(r *Relay) {
		r.recorder = rec
	}
}

// New creates a Relay targeting the given base URL.
func New(baseURL string, opts ...Option) *Relay {
	r := &Relay{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		headers: map[string]string{
			"Content-Type": "application/json",
		},
		logger: learnstream.NopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// BaseURL returns the configured downstream base URL.
func (r *Relay) BaseURL() string {
	return r.baseURL
}

// Post delivers a JSON payload to baseURL+path and reports failure as an
// UpstreamError. Any response below 400 counts as delivered.
func (r *Relay) Post(ctx context.Context, path string, payload interface{}) error {
	url := r.baseURL + path

	body, err := json.Marshal(payload)
	if err != nil {
		return learnstream.NewUpstreamError("relay", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return learnstream.NewUpstreamError("relay", url, err)
	}

	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		r.record(path, duration, false)
		return learnstream.NewUpstreamError("relay", url, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		r.record(path, duration, false)
		return learnstream.NewUpstreamError("relay", url,
			&StatusError{URL: url, StatusCode: resp.StatusCode})
	}

	r.record(path, duration, true)
	return nil
}

// Send delivers a payload without surfacing the outcome to the caller.
// Failures are logged and recorded, then dropped.
func (r *Relay) Send(ctx context.Context, path string, payload interface{}) {
	if err := r.Post(ctx, path, payload); err != nil {
		r.logger.Warn("event relay delivery failed",
			"path", path,
			"error", err,
		)
		return
	}

	r.logger.Debug("event relay delivered",
		"path", path,
	)
}

func (r *Relay) record(target string, duration time.Duration, success bool) {
	if r.recorder != nil {
		r.recorder.RecordRelayDelivery(target, duration, success)
	}
}

// StatusError reports a non-2xx response from the downstream service.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error returns the error message.
func (e *StatusError) Error() string {
	return fmt.Sprintf("relay: unexpected status %d from %s", e.StatusCode, e.URL)
}
