// Package transport issues provider HTTP calls and classifies their failures.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/observability"
)

const maxErrorBody = 64 << 10

// Client performs JSON requests against one provider.
type Client struct {
	provider   string
	httpClient *http.Client
}

// NewClient creates a client whose requests fail when response headers do not
// arrive within timeout. Streamed bodies are not cut by the timeout.
func NewClient(provider string, timeout time.Duration) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		tr.ResponseHeaderTimeout = timeout
	}
	return &Client{
		provider:   provider,
		httpClient: &http.Client{Transport: tr},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// HTTPClient exposes the underlying client to SDKs and image fetchers.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Provider returns the provider name used in errors.
func (c *Client) Provider() string {
	return c.provider
}

// Request describes one call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	// Body is encoded as JSON when non-nil.
	Body any
}

// Do sends req and decodes a 2xx JSON response into out.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	resp, err := c.Open(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.ResponseError(c.provider, fmt.Sprintf("failed to decode response: %v", err))
	}
	return nil
}

// Open sends req and returns the live response when the status is 2xx. The
// caller owns the body. Non-2xx responses are read and turned into errors.
func (c *Client) Open(ctx context.Context, req Request) (*http.Response, error) {
	logger := observability.FromContext(ctx)

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	logger.Debug("calling provider API",
		observability.String("method", method),
		observability.String("url", redact(req.URL)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Warn("provider request failed", observability.Error(err))
		return nil, domain.TransportError(c.provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		perr := ParseError(c.provider, resp.StatusCode, raw)
		logger.Warn("provider returned error status",
			observability.Int("status", resp.StatusCode),
			observability.Error(perr),
		)
		return nil, perr
	}

	return resp, nil
}

// ParseError builds a ProviderError from an error body. It understands the
// shapes used by the supported providers and falls back to the raw text.
func ParseError(provider string, status int, raw []byte) error {
	var shape struct {
		Error json.RawMessage `json:"error"`
		// Baidu
		ErrorCode int    `json:"error_code"`
		ErrorMsg  string `json:"error_msg"`
		// midjourney-proxy, stability
		Message     string `json:"message"`
		Description string `json:"description"`
		Name        string `json:"name"`
		// Spark TTI
		Header *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"header"`
	}

	perr := &domain.ProviderError{Provider: provider, Status: status, Err: domain.ErrProviderResponse}

	if err := json.Unmarshal(raw, &shape); err != nil {
		perr.Message = strings.TrimSpace(string(raw))
		if perr.Message == "" {
			perr.Message = http.StatusText(status)
		}
		return perr
	}

	switch {
	case len(shape.Error) > 0:
		var nested struct {
			Message string          `json:"message"`
			Code    json.RawMessage `json:"code"`
			Type    string          `json:"type"`
			Status  string          `json:"status"`
		}
		if err := json.Unmarshal(shape.Error, &nested); err == nil && nested.Message != "" {
			perr.Message = nested.Message
			perr.Code = strings.Trim(string(nested.Code), `"`)
			if perr.Code == "" {
				perr.Code = firstNonEmpty(nested.Status, nested.Type)
			}
		} else {
			perr.Message = strings.Trim(string(shape.Error), `"`)
		}
	case shape.ErrorMsg != "":
		perr.Message = shape.ErrorMsg
		perr.Code = fmt.Sprint(shape.ErrorCode)
	case shape.Header != nil && shape.Header.Message != "":
		perr.Message = shape.Header.Message
		perr.Code = fmt.Sprint(shape.Header.Code)
	default:
		perr.Message = firstNonEmpty(shape.Message, shape.Description, shape.Name, strings.TrimSpace(string(raw)))
	}

	if perr.Message == "" {
		perr.Message = http.StatusText(status)
	}
	return perr
}

// IsJSON reports whether resp carries a JSON body rather than an event stream.
func IsJSON(resp *http.Response) bool {
	return strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json")
}

// ReadError drains a 2xx JSON body that was expected to be a stream and
// reports it as a provider error.
func ReadError(provider string, resp *http.Response) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return domain.TransportError(provider, err)
	}
	perr := ParseError(provider, 0, raw)
	var pe *domain.ProviderError
	if errors.As(perr, &pe) {
		pe.Status = resp.StatusCode
	}
	return perr
}

// Bearer returns an Authorization header carrying key.
func Bearer(key string) http.Header {
	h := http.Header{}
	if key != "" {
		h.Set("Authorization", "Bearer "+key)
	}
	return h
}

// redact hides query credentials (Gemini passes its key as ?key=).
func redact(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i] + "?..."
	}
	return url
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
