// Package fetch provides clients for the off-chain upstreams: the DEX GraphQL
// API and the token metadata / rates API.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/vault-metrics/internal/fault"
)

// maxErrorBody bounds how much of a failed response ends up in an error
const maxErrorBody = 512

// NewRetryClient creates an HTTP client that retries connection errors and
// 5xx answers retryMax times before giving up.
func NewRetryClient(retryMax int, timeout time.Duration) *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return c.StandardClient()
}

// doJSON sends req and decodes a 200 answer into out. Transport failures and
// unexpected statuses are reported as upstream errors of source.
func doJSON(httpClient *http.Client, req *http.Request, source string, out interface{}) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fault.Upstream(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fault.Upstream(source, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", fault.ErrInvalidPayload, source, err)
	}
	return nil
}

func newJSONRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
