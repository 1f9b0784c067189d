package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"toolhub/internal/domain"
	"toolhub/internal/infra/telemetry"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 8 << 20

// Response is a fully read provider response with a 2xx status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError reports a provider response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Connection is a long-lived HTTP client bound to one provider's base URL.
// It is safe for concurrent use.
type Connection struct {
	provider domain.ProviderConfig
	base     *url.URL
	client   *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
	closed   atomic.Bool
}

func newConnection(provider domain.ProviderConfig, timeout time.Duration, rt http.RoundTripper, logger *zap.Logger) (*Connection, error) {
	base, err := url.Parse(provider.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url for %q: %w", provider.Name, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url for %q must be absolute", provider.Name)
	}
	var limiter *rate.Limiter
	if provider.RateLimitPerSecond > 0 {
		burst := int(provider.RateLimitPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(provider.RateLimitPerSecond), burst)
	}
	return &Connection{
		provider: provider,
		base:     base,
		client: &http.Client{
			Transport: newHeaderRoundTripper(rt),
			Timeout:   timeout,
		},
		limiter: limiter,
		timeout: timeout,
		logger:  logger.With(telemetry.ProviderField(provider.Name)),
	}, nil
}

// Provider returns the configuration the connection was opened with.
func (c *Connection) Provider() domain.ProviderConfig {
	return c.provider
}

func (c *Connection) Name() string {
	return c.provider.Name
}

// Resolve joins path onto the base URL. Absolute http(s) URLs are accepted only
// when they point at the provider's own host.
func (c *Connection) Resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", path, err)
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return "", fmt.Errorf("endpoint %q: unsupported scheme %q", path, ref.Scheme)
		}
		if !strings.EqualFold(ref.Host, c.base.Host) {
			return "", fmt.Errorf("endpoint %q: host %q is outside provider %q", path, ref.Host, c.provider.Name)
		}
		return ref.String(), nil
	}
	joined := *c.base
	joined.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	joined.RawQuery = ref.RawQuery
	return joined.String(), nil
}

// Get issues a GET request against path.
func (c *Connection) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Do sends body as JSON (when non-nil) and returns the response of a 2xx
// reply. Other statuses produce a *StatusError.
func (c *Connection) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	if c.closed.Load() {
		return nil, domain.ErrConnectionClosed
	}
	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if c.closed.Load() {
			return nil, errors.Join(domain.ErrConnectionClosed, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("provider request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		telemetry.DurationField(time.Since(started)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet(data)}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Close releases idle connections. It is idempotent.
func (c *Connection) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.client.CloseIdleConnections()
}

func (c *Connection) Closed() bool {
	return c.closed.Load()
}

func snippet(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
