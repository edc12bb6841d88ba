// Package httpclient provides the shared outbound HTTP client.
//
// The client applies per-operation timeouts (connect, read, write and
// connection-slot acquisition), injects W3C trace context and classifies
// transport failures so callers can decide what is worth retrying.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/overlordausritter/beastgpt/pkg/utils/json"
)

// maxErrorBody bounds how much of an upstream error body ends up in error text.
const maxErrorBody = 512

// Config holds the outbound timeout and pooling configuration.
type Config struct {
	// ConnectTimeout bounds TCP connect and TLS handshake.
	ConnectTimeout time.Duration
	// ReadTimeout bounds every individual read from the connection.
	ReadTimeout time.Duration
	// WriteTimeout bounds every individual write to the connection.
	WriteTimeout time.Duration
	// PoolTimeout bounds the wait for a free connection slot.
	PoolTimeout time.Duration
	// MaxConns caps concurrent in-flight requests. 0 disables the cap.
	MaxConns int
	// MaxIdleConns caps idle keep-alive connections.
	MaxIdleConns int
	// IdleConnTimeout closes keep-alive connections idle for this long.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns connect 10s, read 120s, write 10s, pool 10s.
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout:  10 * time.Second,
		ReadTimeout:     120 * time.Second,
		WriteTimeout:    10 * time.Second,
		PoolTimeout:     10 * time.Second,
		MaxConns:        100,
		MaxIdleConns:    20,
		IdleConnTimeout: 90 * time.Second,
	}
}

// Client is a wrapper around http.Client with additional functionality.
// It is safe for concurrent use and implements Do so it can be handed to
// SDKs that accept an HTTP doer.
type Client struct {
	httpClient  *http.Client
	slots       chan struct{}
	poolTimeout time.Duration
}

// NewClient creates a new HTTP client wrapper.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, read: cfg.ReadTimeout, write: cfg.WriteTimeout}, nil
		},
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		MaxConnsPerHost:     cfg.MaxConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		httpClient:  &http.Client{Transport: transport},
		poolTimeout: cfg.PoolTimeout,
	}
	if cfg.MaxConns > 0 {
		c.slots = make(chan struct{}, cfg.MaxConns)
	}
	return c
}

// Do executes an HTTP request. Transport failures are returned as *TransportError.
// The caller must close the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	// 自动注入 W3C Trace Context 头
	c.injectTraceContext(req)

	release, err := c.acquire(req.Context())
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		release()
		return nil, classify(req, err)
	}

	resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
	return resp, nil
}

// DoJSON executes a request, decodes a JSON response into v and closes the body.
// Responses with status >= 400 are returned as *StatusError.
func (c *Client) DoJSON(req *http.Request, v interface{}) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.URL.Path,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if v == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(req, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// HTTPClient returns the underlying http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// CloseIdleConnections releases idle keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// acquire takes a connection slot, waiting at most poolTimeout.
func (c *Client) acquire(ctx context.Context) (func(), error) {
	if c.slots == nil {
		return func() {}, nil
	}

	release := func() { <-c.slots }

	select {
	case c.slots <- struct{}{}:
		return onceFunc(release), nil
	default:
	}

	timer := time.NewTimer(c.poolTimeout)
	defer timer.Stop()

	select {
	case c.slots <- struct{}{}:
		return onceFunc(release), nil
	case <-timer.C:
		return nil, &TransportError{Kind: KindPoolTimeout, Err: fmt.Errorf("no connection slot available after %s", c.poolTimeout)}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// injectTraceContext 将 W3C Trace Context 头注入到 HTTP 请求中。
// Context 中无活跃 Span 时传播器不会写入任何头。
func (c *Client) injectTraceContext(req *http.Request) {
	if req == nil || req.Context() == nil {
		return
	}

	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}

	propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}

// deadlineConn arms a fresh deadline before every read and write.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.read > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.read))
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.write > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.write))
	}
	return c.Conn.Write(b)
}

// releasingBody returns the connection slot when the body is closed.
type releasingBody struct {
	io.ReadCloser
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

func onceFunc(f func()) func() {
	var once sync.Once
	return func() { once.Do(f) }
}
