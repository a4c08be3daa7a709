package bsky

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kerosindigital/bsky.link/internal/logging"
	"github.com/kerosindigital/bsky.link/internal/metrics"
)

// retryTransport paces every attempt through the limiter and retries
// queries on 429, 5xx and transport failures. Procedures (POST) get a
// single attempt: a refresh rotates the refresh token, so a replay would
// present a spent one.
type retryTransport struct {
	base        http.RoundTripper
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

func endpointOf(req *http.Request) string {
	return strings.TrimPrefix(req.URL.Path, "/xrpc/")
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointOf(req)
	attempts := t.maxAttempts
	if req.Method != http.MethodGet {
		attempts = 1
	}
	backoff := t.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := t.base.RoundTrip(req.Clone(ctx))
		if err == nil {
			metrics.IncUpstream(endpoint, resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				if attempt == attempts {
					return resp, nil
				}
				wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
				_ = resp.Body.Close()
				logging.Debug("upstream_retry", map[string]any{"endpoint": endpoint, "status": resp.StatusCode, "wait_ms": wait.Milliseconds()})
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		metrics.IncUpstream(endpoint, 0)
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == attempts {
			break
		}
		logging.Debug("upstream_retry", map[string]any{"endpoint": endpoint, "error": err.Error(), "wait_ms": backoff.Milliseconds()})
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("%s: request failed after %d attempts: %w", endpoint, attempts, lastErr)
}

// retryAfter honours a Retry-After header given in seconds or as an HTTP
// date, then applies +/-20% jitter.
func retryAfter(header string, fallback time.Duration) time.Duration {
	wait := fallback
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil {
			wait = time.Duration(secs) * time.Second
		} else if at, err := http.ParseTime(header); err == nil {
			if d := time.Until(at); d > 0 {
				wait = d
			}
		}
	}
	jitter := time.Duration(float64(wait) * 0.2)
	if jitter > 0 {
		wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
	}
	return wait
}
