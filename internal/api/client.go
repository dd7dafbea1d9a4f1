package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jogardn/order-console/internal/circuitbreaker"
	"github.com/jogardn/order-console/pkg/models"
	"github.com/sirupsen/logrus"
)

// Request is one call against the orders API. A nil Body sends no payload.
type Request struct {
	Method string
	Path   string
	Body   map[string]string
}

type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fields decodes a JSON object body into opaque text values.
func (r *Response) Fields() (map[string]models.Text, error) {
	fields := make(map[string]models.Text)
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(r.Body, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return fields, nil
}

// Message returns the "message" field of an error body, or "" when the
// body is not JSON or carries none.
func (r *Response) Message() string {
	var body models.ErrorResponse
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return ""
	}
	return body.Message
}

type upstreamError struct {
	statusCode int
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("orders API returned error status: %d", e.statusCode)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewClient builds a client for the API at baseURL. A zero timeout leaves
// requests unbounded.
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SetCircuitBreaker guards every request with cb. Transport errors and 5xx
// responses count as breaker failures.
func (c *Client) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

func (c *Client) CircuitBreaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req. Any HTTP status is returned as a Response; an error means
// no response was received at all.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.breaker == nil {
		return c.send(ctx, req)
	}

	var resp *Response
	err := c.breaker.Execute(func() error {
		r, err := c.send(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return &upstreamError{statusCode: r.StatusCode}
		}
		return nil
	})
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		jsonData, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.Path,
		}).Warn("Request to orders API failed")
		return nil, fmt.Errorf("failed to send request to orders API: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read orders API response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":      req.Method,
		"path":        req.Path,
		"status":      httpResp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Received response from orders API")

	return &Response{StatusCode: httpResp.StatusCode, Body: respBody}, nil
}

// Ping lists orders and reports whether the API answered with 2xx.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/api/orders"})
	if err != nil {
		return err
	}
	if !resp.Success() {
		return &upstreamError{statusCode: resp.StatusCode}
	}
	return nil
}
