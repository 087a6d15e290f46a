package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every upstream call.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient creates the HTTP client used for the metrics backend.
// tlsConfig may be nil to use the system trust store.
func NewHTTPClient(tlsConfig *tls.Config, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Create HTTP client with connection pooling
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConfig,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// upstream holds the base URL, bearer token and per-call timeout of a
// plain JSON API.
type upstream struct {
	httpClient *http.Client
	baseURL    string
	token      string
	timeout    time.Duration
}

func newUpstream(baseURL, token string, httpClient *http.Client) upstream {
	if httpClient == nil {
		httpClient = NewHTTPClient(nil, DefaultTimeout)
	}
	timeout := DefaultTimeout
	if httpClient.Timeout > 0 {
		timeout = httpClient.Timeout
	}
	return upstream{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		timeout:    timeout,
	}
}

// get issues an authenticated GET and reads the whole body before the
// per-call deadline is released.
func (u *upstream) get(ctx context.Context, endpoint string, header http.Header) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	return resp, body, nil
}

// ping checks that path answers with a 2xx status.
func (u *upstream) ping(ctx context.Context, path string) error {
	endpoint := u.baseURL + path

	resp, _, err := u.get(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}

	return nil
}

// Close cleans up idle connections
func (u *upstream) Close() error {
	u.httpClient.CloseIdleConnections()
	return nil
}

// resolvedURL is the final request URL after redirects.
func resolvedURL(resp *http.Response, fallback string) string {
	if resp != nil && resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return fallback
}
