// Package openai implements the generation client adapter over an
// OpenAI-compatible chat completions API.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/pkg/safehttp"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ClientOption configures the client.
type ClientOption func(*client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// client is the low-level HTTP client for the chat completions API.
type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// streamResult is one parsed SSE frame or a read failure.
type streamResult struct {
	chunk *chatCompletionChunk
	err   error
}

func newClient(apiKey string, opts ...ClientOption) *client {
	// No client-level timeout: streaming responses are bounded by the
	// request context. The SSRF guard stays on for provider endpoints.
	c := &client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: safehttp.Client(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// streamChatCompletion starts a streaming completion and returns a channel
// of parsed chunks. The channel is closed when the stream ends.
func (c *client) streamChatCompletion(ctx context.Context, req *chatCompletionRequest) (<-chan streamResult, error) {
	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrUpstreamUnavailable(fmt.Errorf("generation request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyErrorResponse(resp.StatusCode, respBody)
	}

	out := make(chan streamResult)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
}

// streamReader parses the SSE body into chunks. It owns the channel and
// the response body. Every send is guarded by the request context so the
// reader exits when the consumer stops receiving.
func (c *client) streamReader(ctx context.Context, body io.ReadCloser, out chan<- streamResult) {
	defer close(out)
	defer body.Close()

	deliver := func(result streamResult) bool {
		select {
		case out <- result:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			deliver(streamResult{err: domain.ErrInternal(fmt.Errorf("unmarshal chunk: %w", err))})
			return
		}

		if !deliver(streamResult{chunk: &chunk}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		deliver(streamResult{err: domain.Classify(fmt.Errorf("stream read: %w", err))})
	}
}

// classifyErrorResponse maps a non-200 provider response into the error
// taxonomy, recognising policy refusals.
func classifyErrorResponse(status int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		cause := fmt.Errorf("provider error (status %d): %s", status, errResp.Error.Message)
		if isContentFilterError(errResp.Error) {
			return domain.ErrContentFiltered(cause)
		}
		return classifyProviderStatus(status, cause)
	}
	return classifyProviderStatus(status, fmt.Errorf("provider status %d: %s", status, body))
}

// classifyProviderStatus maps a provider status to the taxonomy. The wire
// request is built here, not by the end user, so a provider 4xx such as a
// 401 from a bad API key is a server-side fault and never an invalid
// request.
func classifyProviderStatus(status int, cause error) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.ErrUpstreamUnavailable(cause)
	}
	return domain.ErrInternal(cause)
}

func isContentFilterError(e *apiError) bool {
	switch e.Code {
	case "content_filter", "content_policy_violation", "moderation_blocked":
		return true
	}
	return e.Type == "content_filter_error"
}
