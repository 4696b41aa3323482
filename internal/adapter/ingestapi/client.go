// Package ingestapi is the HTTP client for the ingestion server, which fetches
// provider data on request and keeps every raw record it has stored.
package ingestapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// Client implements pipeline.Ingester and pipeline.RecordSource.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an ingestion server client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Ingest asks the server to fetch and store one provider's records and
// returns how many it stored.
func (c *Client) Ingest(ctx context.Context, cfg domain.ProviderConfig) (int, error) {
	payload := cfg.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(ingestRequest{Provider: cfg.Provider, Payload: payload})
	if err != nil {
		return 0, fmt.Errorf("encode ingest request: %w", err)
	}

	var out ingestResponse
	if err := c.doRequest(ctx, http.MethodPost, "/ingest/", body, &out); err != nil {
		return 0, fmt.Errorf("ingest %s: %w", cfg.Provider, err)
	}
	c.logger.Debug("provider ingested", "provider", cfg.Provider, "records", len(out.Records))
	return len(out.Records), nil
}

// FetchAll returns every stored raw record, undecoded.
func (c *Client) FetchAll(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, "/data/", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch stored records: %w", err)
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, detail(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// detail returns the server's {"detail": "..."} reason, or the raw body.
func detail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(string(body))
}

// Ingestion server request and response types.

type ingestRequest struct {
	Provider string         `json:"provider"`
	Payload  map[string]any `json:"payload"`
}

type ingestResponse struct {
	Status  string            `json:"status"`
	Records []json.RawMessage `json:"records"`
}
