// Package nomis is the low-level client for the Nomisweb statistical data
// service: authenticated GET requests, content decoding and extraction of the
// SDMX-JSON definition documents into typed records.
package nomis

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"

	"ukcensusapi/internal/core"
	"ukcensusapi/internal/httpclient"
	"ukcensusapi/internal/query"
)

// DefaultBaseURL is the public service root.
const DefaultBaseURL = "https://www.nomisweb.co.uk/"

// maxJSONSize caps definition documents; code lists for output areas are large.
const maxJSONSize = 32 * 1024 * 1024

// Client issues requests to the service. It holds no mutable state.
type Client struct {
	baseURL    string
	credential string
	http       *http.Client
	logger     *slog.Logger
}

// New creates a client for baseURL. An empty baseURL selects DefaultBaseURL and
// a nil httpClient selects a client built from httpclient.DefaultConfig.
func New(baseURL, credential string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if httpClient == nil {
		httpClient = httpclient.NewHTTPClient(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		credential: credential,
		http:       httpClient,
		logger:     logger,
	}
}

// BaseURL returns the service root, always ending in "/".
func (c *Client) BaseURL() string { return c.baseURL }

// Credential returns the API key merged into every request.
func (c *Client) Credential() string { return c.credential }

// URL returns the canonical URL for path with params and the credential.
func (c *Client) URL(path string, params query.Params) string {
	return query.BuildPath(c.baseURL, path, params, c.credential)
}

// Ping checks that the service root responds.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, c.baseURL, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// FetchJSON fetches a definition document and returns its raw bytes.
func (c *Client) FetchJSON(ctx context.Context, path string, params query.Params) ([]byte, error) {
	resp, err := c.get(ctx, c.URL(path, params), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return nil, core.NewTransportError("decoding response from "+path, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, maxJSONSize+1))
	if err != nil {
		return nil, core.NewTransportError("reading response from "+path, err)
	}
	if len(raw) > maxJSONSize {
		return nil, core.NewTransportError(fmt.Sprintf("response body too large (exceeds %d bytes)", maxJSONSize), nil)
	}
	return raw, nil
}

// Download streams the body of rawURL into w and returns the number of decoded
// bytes written.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, rawURL, "text/tab-separated-values")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return 0, core.NewTransportError("decoding download", err)
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return n, core.NewTransportError("reading download", err)
	}
	return n, nil
}

func (c *Client) get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, core.NewTransportError("creating request", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "url", redact(rawURL), "error", err)
		return nil, core.NewTransportError("requesting "+redact(rawURL), err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, core.NewTransportError(fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, redact(rawURL)), nil)
	}
	return resp, nil
}

// decodeBody wraps the response body according to Content-Encoding.
// Supports gzip, deflate, and brotli (br) encodings.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	encoding := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Encoding"), ",")[0])
	switch strings.ToLower(encoding) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// redact hides the credential when a URL is logged or returned in an error.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if !q.Has(query.CredentialParam) {
		return rawURL
	}
	q.Set(query.CredentialParam, "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
