package bsky

import (
	"os"
	"strconv"

	"golang.org/x/time/rate"
)

// newLimiter creates the outbound limiter. Non-positive arguments fall
// back to BSKY_API_RPS / BSKY_API_BURST, then to 5 rps with a burst of 10.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = 5.0
		if v := os.Getenv("BSKY_API_RPS"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				rps = f
			}
		}
	}
	if burst <= 0 {
		burst = 10
		if v := os.Getenv("BSKY_API_BURST"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				burst = n
			}
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
