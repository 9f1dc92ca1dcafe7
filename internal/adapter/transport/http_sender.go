package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/klauspost/compress/gzip"

	"github.com/V4T54L/logbeacon/internal/domain"
)

const (
	CompressionNone = "none"
	CompressionGzip = "gzip"

	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 512
)

// HTTPSender posts serialized batches to the collector. It is the request
// path of the transport.
type HTTPSender struct {
	url         string
	client      *http.Client
	compression string
	logger      *slog.Logger
}

// NewHTTPSender creates an HTTPSender for url.
func NewHTTPSender(url string, client *http.Client, compression string, logger *slog.Logger) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{
		url:         url,
		client:      client,
		compression: compression,
		logger:      logger.With("component", "http_sender"),
	}
}

// Send posts payload, a JSON array of entries. Any non-2xx response is
// returned as a *domain.StatusError.
func (s *HTTPSender) Send(ctx context.Context, payload []byte) error {
	body := payload
	if s.compression == CompressionGzip {
		var err error
		if body, err = gzipPayload(payload); err != nil {
			return fmt.Errorf("compress batch: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.compression == CompressionGzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func gzipPayload(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
