package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPExtractor calls an extraction service over HTTP. The service receives
// the source text and replies with extraction JSON in the shape ParseResult
// accepts; malformed candidates in the reply are filtered, not fatal.
type HTTPExtractor struct {
	endpoint string
	client   *http.Client
}

// HTTPConfig holds extraction service client configuration.
type HTTPConfig struct {
	// Endpoint is the full URL of the extraction service.
	Endpoint string

	// Timeout is the per-request timeout (default: 60s; extraction backends
	// are slow).
	Timeout time.Duration
}

type extractRequest struct {
	Text string `json:"text"`
}

// NewHTTPExtractor creates an extraction service client.
func NewHTTPExtractor(config HTTPConfig) *HTTPExtractor {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &HTTPExtractor{
		endpoint: config.Endpoint,
		client:   &http.Client{Timeout: config.Timeout},
	}
}

// Extract sends the text to the extraction service and parses its reply.
func (e *HTTPExtractor) Extract(ctx context.Context, text string) (*Result, error) {
	jsonData, err := json.Marshal(extractRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, string(body))
	}

	return ParseResult(string(body))
}
