// Package httpclient provides the HTTP client factory used for every request to
// the data service, so that one timeout applies uniformly.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// DefaultTimeout bounds every outbound request end to end.
const DefaultTimeout = 15 * time.Second

// ClientConfig holds configuration options for creating HTTP clients
type ClientConfig struct {
	// Timeout specifies a time limit for requests made by the client, including reading the body
	Timeout time.Duration

	// DialTimeout is the maximum amount of time a dial will wait for a connect to complete
	DialTimeout time.Duration

	// TLSHandshakeTimeout specifies the maximum amount of time to wait for a TLS handshake
	TLSHandshakeTimeout time.Duration

	// IdleConnTimeout is how long an idle keep-alive connection remains open
	IdleConnTimeout time.Duration

	// MaxIdleConnsPerHost controls the idle connections kept for the service host
	MaxIdleConnsPerHost int
}

// ParseDuration accepts either plain integers (interpreted as seconds) or Go
// duration strings (e.g., "30s", "2m"). It returns defaultVal for empty or
// invalid input.
func ParseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// DefaultConfig returns a ClientConfig with the client's defaults.
// HTTP_TIMEOUT (seconds or Go duration format) overrides the request timeout.
func DefaultConfig() ClientConfig {
	timeout := ParseDuration(os.Getenv("HTTP_TIMEOUT"), DefaultTimeout)
	return ClientConfig{
		Timeout:             timeout,
		DialTimeout:         min(timeout, 10*time.Second),
		TLSHandshakeTimeout: min(timeout, 10*time.Second),
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 4,
	}
}

// NewHTTPClient creates a new HTTP client with the provided configuration.
// If config is nil, DefaultConfig() is used.
func NewHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		// Content decoding is handled by the nomis client, which also accepts brotli.
		DisableCompression: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}

// NewWithTimeout creates a client whose request timeout is timeout.
func NewWithTimeout(timeout time.Duration) *http.Client {
	cfg := DefaultConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
		cfg.DialTimeout = min(timeout, cfg.DialTimeout)
		cfg.TLSHandshakeTimeout = min(timeout, cfg.TLSHandshakeTimeout)
	}
	return NewHTTPClient(&cfg)
}
