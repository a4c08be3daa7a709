package bsky

import (
	"net/http"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/xrpc"
)

const userAgent = "bsky.link"

// TokenSource supplies the access token for authenticated calls.
type TokenSource interface {
	Token() string
}

// Options configures an HTTPClient. Zero fields take defaults.
type Options struct {
	// BaseURL is the PDS or app view host. A trailing /xrpc is tolerated.
	BaseURL     string
	Timeout     time.Duration
	RPS         float64
	Burst       int
	MaxAttempts int
	BaseBackoff time.Duration
	// Transport carries the attempts. Nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// HTTPClient is a rate limited XRPC client for the Bluesky app view.
// Requests go through indigo's generated lexicon calls; pacing and retry
// live in the http.Client handed to xrpc.
type HTTPClient struct {
	host       string
	tokens     TokenSource
	httpClient *http.Client
}

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://bsky.social"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	rt := &retryTransport{
		base:        opts.Transport,
		limiter:     newLimiter(opts.RPS, opts.Burst),
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
	}
	host := strings.TrimSuffix(opts.BaseURL, "/")
	host = strings.TrimSuffix(host, "/xrpc")
	return &HTTPClient{
		host:       host,
		httpClient: &http.Client{Transport: rt, Timeout: opts.Timeout},
	}
}

// SetTokenSource wires the credential holder. Call before serving traffic.
func (c *HTTPClient) SetTokenSource(ts TokenSource) { c.tokens = ts }

// xrpcClient builds a per-call client so concurrent requests never share
// a mutable AuthInfo.
func (c *HTTPClient) xrpcClient(auth *xrpc.AuthInfo) *xrpc.Client {
	ua := userAgent
	return &xrpc.Client{
		Client:    c.httpClient,
		Host:      c.host,
		Auth:      auth,
		UserAgent: &ua,
	}
}

// authed returns a client carrying the current access token, if any.
func (c *HTTPClient) authed() *xrpc.Client {
	var auth *xrpc.AuthInfo
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			auth = &xrpc.AuthInfo{AccessJwt: tok}
		}
	}
	return c.xrpcClient(auth)
}
