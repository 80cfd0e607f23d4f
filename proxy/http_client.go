package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes bounds how much of a proxy response is read.
const maxResponseBytes = 64 << 20

// HTTPClient is an Executor that POSTs JSON requests to the proxy.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	tokens   TokenSource
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient sets the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// WithTokenSource sets how bearer tokens are obtained.
func WithTokenSource(ts TokenSource) HTTPClientOption {
	return func(h *HTTPClient) {
		h.tokens = ts
	}
}

// NewHTTPClient creates an Executor for the proxy at endpoint.
//
// Parameters:
//   - endpoint: Full URL of the execute route, e.g. "https://proxy.internal/v1/execute"
//   - opts: Optional configuration
//
// Returns:
//   - *HTTPClient: The client
func NewHTTPClient(endpoint string, opts ...HTTPClientOption) *HTTPClient {
	h := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Compile-time assertion that HTTPClient implements Executor.
var _ Executor = (*HTTPClient)(nil)

// Execute sends req and decodes the proxy's answer.
func (h *HTTPClient) Execute(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("switchyard: encode proxy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.tokens != nil {
		token, err := h.tokens()
		if err != nil {
			return nil, fmt.Errorf("switchyard: obtain proxy token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("switchyard: proxy request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("switchyard: read proxy response: %w", err)
	}

	resp, err := decodeResponse(raw)
	if err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, &RemoteError{Status: httpResp.StatusCode, Message: http.StatusText(httpResp.StatusCode)}
		}
		return nil, fmt.Errorf("switchyard: decode proxy response: %w", err)
	}
	if resp.Error != "" {
		return nil, &RemoteError{Status: httpResp.StatusCode, Message: resp.Error}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Status: httpResp.StatusCode, Message: http.StatusText(httpResp.StatusCode)}
	}

	return resp, nil
}
