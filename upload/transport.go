package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/courier/iox"
	"github.com/pithecene-io/courier/types"
)

// Payload is one batch handed to a transport for delivery.
type Payload struct {
	// Feature is the telemetry track this batch belongs to.
	Feature types.Feature
	// Name is the batch identifier (the batch file name).
	Name string
	// Body is the complete encoded payload.
	Body []byte
	// ContentType describes Body's encoding.
	ContentType string
}

// Transport performs the actual network call for one payload. The timeout
// on the call is the transport's own; the worker observes expiry as a
// retryable failure.
//
// Send returns the collector's status code when a response was received,
// and a non-nil error for network-level failures (no response). Workers
// classify: 2xx delivered, 4xx terminal, anything else retryable.
type Transport interface {
	Send(ctx context.Context, p Payload) (int, error)
}

// Header names attached by HTTPTransport.
const (
	// HeaderFeature carries the telemetry track name.
	HeaderFeature = "X-Courier-Feature"
	// HeaderRequestID carries a fresh UUID per attempt, letting the
	// collector deduplicate a batch retried after an ambiguous failure.
	HeaderRequestID = "X-Courier-Request-ID"
	// HeaderVersion carries the courier version.
	HeaderVersion = "X-Courier-Version"
)

// DefaultHTTPTimeout is the default per-request timeout.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPConfig configures the HTTP collector transport.
type HTTPConfig struct {
	// URL is the collector intake endpoint (required).
	URL string
	// Headers are custom headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration
}

// HTTPTransport posts batches to an HTTP collector.
type HTTPTransport struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPTransport creates the HTTP collector transport.
// Returns an error if the URL is empty.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	if cfg.URL == "" {
		return nil, errors.New("http transport requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	return &HTTPTransport{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Send implements Transport. One call is one attempt; retry policy belongs
// to the worker's cycle, not the transport.
func (t *HTTPTransport) Send(ctx context.Context, p Payload) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(p.Body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderFeature, p.Feature.String())
	req.Header.Set(HeaderRequestID, uuid.NewString())
	req.Header.Set(HeaderVersion, types.Version)
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post batch: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// StubTransport is a scripted transport for tests. Each Send pops the next
// scripted response; when the script is exhausted the last response repeats.
type StubTransport struct {
	mu sync.Mutex

	// Script is the sequence of responses to return.
	Script []StubResponse
	// Sent records every payload received, in order.
	Sent []Payload

	next int
}

// StubResponse is one scripted Send result.
type StubResponse struct {
	Code int
	Err  error
}

// Send implements Transport by recording the payload and returning the next
// scripted response. An empty script returns 200.
func (s *StubTransport) Send(_ context.Context, p Payload) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy the body: callers may reuse the buffer.
	stored := p
	stored.Body = append([]byte(nil), p.Body...)
	s.Sent = append(s.Sent, stored)

	if len(s.Script) == 0 {
		return http.StatusOK, nil
	}
	r := s.Script[s.next]
	if s.next < len(s.Script)-1 {
		s.next++
	}
	return r.Code, r.Err
}

// Calls returns the number of Send invocations.
func (s *StubTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Sent)
}

// Verify implementations.
var (
	_ Transport = (*HTTPTransport)(nil)
	_ Transport = (*StubTransport)(nil)
)
