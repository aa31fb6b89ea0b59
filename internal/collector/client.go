package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evanhu96/load-management-app/internal/errors"
	"github.com/evanhu96/load-management-app/internal/ingest"
)

// Client talks to the management server's REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// HTTPClient exposes the underlying client for transport-level test hooks.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// BulkResponse is the server's bulk import summary.
type BulkResponse struct {
	Message      string `json:"message"`
	SuccessCount int    `json:"successCount"`
	ErrorCount   int    `json:"errorCount"`
}

// BulkImport posts a batch of loads to the server.
func (c *Client) BulkImport(ctx context.Context, loads []*ingest.LoadInput) (*BulkResponse, error) {
	body, err := json.Marshal(map[string]any{"loads": loads})
	if err != nil {
		return nil, fmt.Errorf("failed to encode loads: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/loads/bulk", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.TransportError{Op: "bulk import", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &errors.TransportError{
			Op:  "bulk import",
			Err: fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	var result BulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode bulk response: %w", err)
	}
	return &result, nil
}

// Health checks whether the server is reachable and reports itself healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &errors.TransportError{Op: "health check", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &errors.TransportError{
			Op:  "health check",
			Err: fmt.Errorf("server returned %d", resp.StatusCode),
		}
	}
	return nil
}
