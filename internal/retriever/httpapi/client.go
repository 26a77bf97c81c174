// Package httpapi implements the context retriever adapter over the
// vector-context service's HTTP API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
)

const defaultTopK = 4

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTopK sets the number of passages requested per query.
func WithTopK(topK int) ClientOption {
	return func(c *Client) {
		if topK > 0 {
			c.topK = topK
		}
	}
}

// Client is an HTTP client for the vector-context retrieval service.
type Client struct {
	baseURL    string
	apiKey     string
	topK       int
	httpClient *http.Client
}

var _ domain.ContextRetriever = (*Client)(nil)

// NewClient creates a retriever client for the service at baseURL.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		topK:       defaultTopK,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retrieve queries the service for grounding context.
func (c *Client) Retrieve(ctx context.Context, q domain.Question) (*domain.RetrievedContext, error) {
	body, err := json.Marshal(queryRequest{
		Question:    q.Text,
		Language:    q.Language,
		HistorySize: len(q.History),
		TopK:        c.topK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrUpstreamUnavailable(fmt.Errorf("retriever request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrUpstreamUnavailable(fmt.Errorf("read retriever response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ClassifyStatusCode(resp.StatusCode,
			fmt.Errorf("retriever status %d: %s", resp.StatusCode, truncate(respBody, 512)))
	}

	var result queryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.ErrInternal(fmt.Errorf("unmarshal retriever response: %w", err))
	}

	return result.toDomain(), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
