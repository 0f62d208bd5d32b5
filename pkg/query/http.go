package query

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-pivot/components/pivot"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxErrorBody = 4 << 10

// StatusError reports a non-2xx response from the query endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("query: endpoint returned %d", e.Code)
	}
	return fmt.Sprintf("query: endpoint returned %d: %s", e.Code, e.Body)
}

// HTTPOptions configures an HTTPClient.
type HTTPOptions struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Client   *http.Client
}

// HTTPClient posts specs as JSON to a query endpoint and decodes
// {columns, rows, aggregated} responses.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPClient builds a client. A zero timeout keeps the http.Client
// default of none; callers usually bound requests through ctx instead.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		apiKey:   opts.APIKey,
		client:   client,
	}
}

// ExecuteSpec implements Executor.
func (c *HTTPClient) ExecuteSpec(ctx context.Context, spec Spec) (pivot.Dataset, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return pivot.Dataset{}, fmt.Errorf("query: encode spec: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return pivot.Dataset{}, fmt.Errorf("query: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if spec.RequestID != "" {
		req.Header.Set("X-Request-ID", spec.RequestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return pivot.Dataset{}, fmt.Errorf("query: execute %s: %w", spec.Source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return pivot.Dataset{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	var ds pivot.Dataset
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil {
		return pivot.Dataset{}, fmt.Errorf("query: decode response: %w", err)
	}
	return ds, nil
}
