package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// DefaultEndpoint is the public ingestion endpoint for tracked envelopes.
const DefaultEndpoint = "https://dc.services.visualstudio.com/v2/track"

// HTTPTransmitter posts batches as gzip compressed newline delimited JSON.
// Throttling, server errors and network failures are retried with
// exponential backoff; other responses fail the batch immediately.
type HTTPTransmitter struct {
	endpoint   string
	client     *http.Client
	maxElapsed time.Duration
	logger     *zap.Logger
}

// HTTPOption configures an HTTPTransmitter.
type HTTPOption func(*HTTPTransmitter)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransmitter) {
		if client != nil {
			t.client = client
		}
	}
}

// WithMaxRetryTime bounds the total time spent retrying one batch.
func WithMaxRetryTime(d time.Duration) HTTPOption {
	return func(t *HTTPTransmitter) {
		t.maxElapsed = d
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *zap.Logger) HTTPOption {
	return func(t *HTTPTransmitter) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewHTTPTransmitter creates a transmitter for endpoint, DefaultEndpoint
// when empty.
func NewHTTPTransmitter(endpoint string, opts ...HTTPOption) *HTTPTransmitter {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	t := &HTTPTransmitter{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxElapsed: time.Minute,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transmit sends batch to the endpoint.
func (t *HTTPTransmitter) Transmit(ctx context.Context, batch [][]byte) error {
	if len(batch) == 0 {
		return nil
	}

	body, err := compressBatch(batch)
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = t.maxElapsed

	attempt := 0
	op := func() error {
		attempt++
		err := t.post(ctx, body)
		if err != nil {
			t.logger.Debug("Transmission attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("items", len(batch)),
				zap.Error(err))
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("failed to transmit %d envelopes after %d attempts: %w", len(batch), attempt, err)
	}
	return nil
}

func (t *HTTPTransmitter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-json-stream")
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case isRetryableStatus(resp.StatusCode):
		return fmt.Errorf("ingestion endpoint returned %s", resp.Status)
	default:
		return backoff.Permanent(fmt.Errorf("ingestion endpoint rejected batch: %s", resp.Status))
	}
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusServiceUnavailable,
		http.StatusBadGateway, http.StatusGatewayTimeout, 439:
		return true
	}
	return false
}

func compressBatch(batch [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	for _, payload := range batch {
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("failed to compress batch: %w", err)
		}
		if _, err := zw.Write([]byte{'\n'}); err != nil {
			return nil, fmt.Errorf("failed to compress batch: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress batch: %w", err)
	}
	return buf.Bytes(), nil
}
