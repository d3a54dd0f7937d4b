package testresults

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPClient wraps http.Client with the service's base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// do sends a request and decodes a JSON answer into out when out is not
// nil. It returns the status code.
func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) (int, error) {
	return c.do(ctx, http.MethodGet, path, "", http.NoBody, out)
}

// PostJSON performs a POST request with a JSON body.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, in, out any) (int, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(data), out)
}

// Upload posts raw as the "file" part of a multipart form.
func (c *HTTPClient) Upload(ctx context.Context, path, filename string, raw []byte, out any) (int, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return 0, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(raw); err != nil {
		return 0, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("failed to close form: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &body, out)
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string) (int, error) {
	return c.do(ctx, http.MethodDelete, path, "", http.NoBody, nil)
}
