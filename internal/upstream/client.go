// Package upstream wraps the backend discovery API. The response body is
// returned raw; decoding is owned by the discovery package's tolerant parse
// boundary.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AlfRonDon/neurareport/internal/config"
)

// maxResponseBytes bounds how much of an upstream response is read.
// Discovery payloads are template-sized summaries, not row data.
const maxResponseBytes = 16 * 1024 * 1024

// DiscoverRequest describes one batch-discovery query for one template
type DiscoverRequest struct {
	TemplateID   string            `json:"template_id"`
	TemplateKind string            `json:"template_kind,omitempty"`
	StartDate    string            `json:"start_date"`
	EndDate      string            `json:"end_date"`
	KeyFilters   map[string]string `json:"key_filters,omitempty"`
	ConnectionID string            `json:"connection_id,omitempty"`
}

// Client calls the backend discovery API
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates an upstream client from configuration
func NewClient(cfg config.UpstreamConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// DiscoverBatches runs one discovery query and returns the raw response body
func (c *Client) DiscoverBatches(ctx context.Context, req DiscoverRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal discovery request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/discovery", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("discovery request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discovery request returned status %d for template %s", resp.StatusCode, req.TemplateID)
	}

	return data, nil
}
