package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Relay fetch failure modes. Both are non-fatal to the monitor loop.
var (
	ErrRelayUnreachable       = errors.New("relay unreachable")
	ErrMalformedRelayResponse = errors.New("malformed relay response")
)

// ProxyStats is one proxy entry as reported by the frps dashboard API.
// The upstream schema drifts between frps versions, so this is a tolerant
// view: unknown fields are ignored and missing counters stay zero.
type ProxyStats struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	RemotePort int    `json:"remote_port"`
	TrafficIn  int64  `json:"traffic_in"`
	TrafficOut int64  `json:"traffic_out"`
}

type proxyStatsResponse struct {
	Proxies []ProxyStats `json:"proxies"`
}

// FrpsClient polls the frps dashboard for runtime proxy statistics
type FrpsClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewFrpsClient creates a new frps dashboard client. The HTTP timeout is
// the only hard bound on a reconciliation cycle.
func NewFrpsClient(baseURL, username, password string, timeout time.Duration) *FrpsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FrpsClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetProxyStats fetches the current proxy list from the dashboard
func (c *FrpsClient) GetProxyStats(ctx context.Context) ([]ProxyStats, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/proxies", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRelayUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: frps dashboard returned status %d", ErrRelayUnreachable, resp.StatusCode)
	}

	var result proxyStatsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRelayResponse, err)
	}

	return result.Proxies, nil
}
