package spotify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = time.Second
	defaultMaxBackoff  = 30 * time.Second
	jitterFraction     = 0.1
	maxResponseBytes   = 4 << 20
)

type response struct {
	status int
	body   []byte
}

// doWithRetry sends the request, retrying transport failures, 429 and 5xx
// with exponential backoff. Every other failure is returned on first sight.
// The token is read from the store before each attempt, so a retry never
// goes out with a token that expired while backing off.
func (c *Client) doWithRetry(ctx context.Context, method, rawURL string, payload []byte) (response, error) {
	maxRetries := c.maxRetries

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return response{}, &ports.CatalogError{Kind: ports.KindNetwork, Message: "request canceled", Err: err}
		}
		token, ok := c.tokens.Token()
		if !ok {
			return response{}, &ports.CatalogError{Kind: ports.KindAuthenticationRequired, Message: "access token missing or expired"}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return response{}, &ports.CatalogError{Kind: ports.KindInvalidRequest, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		// #nosec G107 -- URL built from the configured catalog base URL
		resp, err := c.httpClient.Do(req)
		var (
			cerr       *ports.CatalogError
			retryAfter time.Duration
			out        response
		)
		if err != nil {
			cerr = transportError(ctx, err)
		} else {
			out, err = readResponse(resp)
			if err != nil {
				cerr = &ports.CatalogError{Kind: ports.KindNetwork, Status: resp.StatusCode, Temporary: true, Err: err}
			} else {
				cerr = classifyStatus(out.status, out.body)
			}
			retryAfter = parseRetryAfter(resp)
		}

		if cerr == nil {
			return out, nil
		}
		if !cerr.Retryable() {
			return response{}, cerr
		}
		if attempt >= maxRetries {
			if maxRetries > 0 {
				c.logger.Warnf("spotify adapter: giving up after %d retries: %v", maxRetries, cerr)
			}
			return response{}, cerr
		}

		delay := c.backoff(attempt)
		if retryAfter > delay {
			delay = min(retryAfter, c.maxBackoff)
		}
		c.logger.Warnf("spotify adapter: retry attempt %d/%d in %v after %v", attempt+1, maxRetries, delay.Round(time.Millisecond), cerr)

		if err := c.sleep(ctx, delay); err != nil {
			return response{}, &ports.CatalogError{Kind: ports.KindNetwork, Message: "request canceled", Err: err}
		}
	}
}

// backoff returns base*2^attempt plus up to 10% jitter, capped at maxBackoff.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseBackoff << attempt
	if delay <= 0 || delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	delay += time.Duration(float64(delay) * jitterFraction * c.jitter())
	if delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	return delay
}

func transportError(ctx context.Context, err error) *ports.CatalogError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ports.CatalogError{Kind: ports.KindNetwork, Message: "request canceled", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ports.CatalogError{Kind: ports.KindNetwork, Message: "request canceled", Err: err}
	}
	return &ports.CatalogError{Kind: ports.KindNetwork, Temporary: true, Err: err}
}

func readResponse(resp *http.Response) (response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{status: resp.StatusCode}, err
	}
	return response{status: resp.StatusCode, body: body}, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
