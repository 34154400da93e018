package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// DefaultBaseURL is the public Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1"

const (
	defaultRequestTimeout  = 30 * time.Second
	defaultResourceTimeout = 60 * time.Second
)

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	Logger     logrus.FieldLogger
	// MaxRetries caps the retries after the first attempt. Zero selects
	// the default of 3; a negative value sends each request once.
	MaxRetries      int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	RequestTimeout  time.Duration
	ResourceTimeout time.Duration
	// Tracing wraps the transport with OpenTelemetry spans.
	Tracing bool
}

// Client is the catalog adapter for the Spotify Web API.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	tokens          *TokenStore
	logger          logrus.FieldLogger
	maxRetries      int
	baseBackoff     time.Duration
	maxBackoff      time.Duration
	resourceTimeout time.Duration
	jitter          func() float64
	sleep           func(ctx context.Context, d time.Duration) error
}

// compile-time interface assertion
var _ ports.CatalogClient = (*Client)(nil)

// NewClient constructs a catalog client reading its bearer token from tokens.
func NewClient(tokens *TokenStore, opts Options) *Client {
	if tokens == nil {
		tokens = NewTokenStore()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if opts.Tracing {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		traced := *httpClient
		traced.Transport = otelhttp.NewTransport(base)
		httpClient = &traced
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	c := &Client{
		httpClient:      httpClient,
		baseURL:         strings.TrimRight(baseURL, "/"),
		tokens:          tokens,
		logger:          logger,
		maxRetries:      opts.MaxRetries,
		baseBackoff:     opts.BaseBackoff,
		maxBackoff:      opts.MaxBackoff,
		resourceTimeout: opts.ResourceTimeout,
		jitter:          rand.Float64,
		sleep:           sleepWithContext,
	}
	switch {
	case c.maxRetries == 0:
		c.maxRetries = defaultMaxRetries
	case c.maxRetries < 0:
		c.maxRetries = 0
	}
	if c.baseBackoff <= 0 {
		c.baseBackoff = defaultBaseBackoff
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = defaultMaxBackoff
	}
	if c.resourceTimeout <= 0 {
		c.resourceTimeout = defaultResourceTimeout
	}
	return c
}

// Authenticated reports whether the token store holds a usable token.
func (c *Client) Authenticated() bool {
	return c.tokens.Valid()
}

// Ping checks that the catalog host answers at all. Any HTTP response,
// including 401, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return &ports.CatalogError{Kind: ports.KindInvalidRequest, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	_ = resp.Body.Close()
	return nil
}

// call runs one catalog request: token check, URL build, retried send,
// optional JSON decode into out. It returns the final HTTP status.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	if !c.tokens.Valid() {
		return 0, &ports.CatalogError{Kind: ports.KindAuthenticationRequired, Message: "access token missing or expired"}
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return 0, &ports.CatalogError{Kind: ports.KindInvalidRequest, Message: fmt.Sprintf("bad url %q", c.baseURL+path), Err: err}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var payload []byte
	if in != nil {
		payload, err = json.Marshal(in)
		if err != nil {
			return 0, &ports.CatalogError{Kind: ports.KindInvalidRequest, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.resourceTimeout)
	defer cancel()

	resp, err := c.doWithRetry(ctx, method, u.String(), payload)
	if err != nil {
		return 0, fmt.Errorf("spotify adapter: %s %s: %w", method, path, err)
	}

	if out == nil || resp.status == http.StatusNoContent {
		return resp.status, nil
	}
	if len(resp.body) == 0 {
		return resp.status, fmt.Errorf("spotify adapter: %s %s: %w", method, path,
			&ports.CatalogError{Kind: ports.KindNoData, Status: resp.status})
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return resp.status, fmt.Errorf("spotify adapter: %s %s: %w", method, path,
			&ports.CatalogError{Kind: ports.KindDecoding, Status: resp.status, Err: err})
	}
	return resp.status, nil
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("spotify adapter: %w", &ports.CatalogError{Kind: ports.KindInvalidRequest, Message: fmt.Sprintf(format, args...)})
}
