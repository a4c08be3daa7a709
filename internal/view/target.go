package view

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultAllowedHosts are the hostnames a target post URL may point at.
var DefaultAllowedHosts = []string{"bsky.app", "staging.bsky.app"}

// Target is a validated single-post request.
type Target struct {
	RawURL     string
	Handle     string
	PostID     string
	ShowThread bool
	HideParent bool
	// Key is the normalized cache key; it doubles as the permalink suffix.
	Key string
}

// ParseTarget validates a post URL of the form
// https://{host}/profile/{handle}/post/{id} and the two display flags.
// show_thread accepts "on" and the legacy "t"; hide_parent accepts "on".
// With no allowed hosts given, DefaultAllowedHosts applies.
func ParseTarget(rawURL, showThread, hideParent string, allowed ...string) (Target, error) {
	if len(allowed) == 0 {
		allowed = DefaultAllowedHosts
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Target{}, fmt.Errorf("%w: unparseable url", ErrInvalidInput)
	}
	if !hostAllowed(u.Hostname(), allowed) {
		return Target{}, fmt.Errorf("%w: host %q not allowed", ErrInvalidInput, u.Hostname())
	}
	parts := strings.Split(u.Path, "/")
	var handle, postID string
	if len(parts) > 2 {
		handle = parts[2]
	}
	if len(parts) > 4 {
		postID = parts[4]
	}
	if handle == "" || postID == "" {
		return Target{}, fmt.Errorf("%w: missing handle or post id", ErrInvalidInput)
	}
	t := Target{
		RawURL:     rawURL,
		Handle:     handle,
		PostID:     postID,
		ShowThread: showThread == "on" || showThread == "t",
		HideParent: hideParent == "on",
	}
	t.Key = CacheKey(t.ShowThread, t.HideParent, rawURL)
	return t, nil
}

// CacheKey joins the set flags and the raw url in a fixed order, so the
// order of the inbound query parameters never matters.
func CacheKey(showThread, hideParent bool, rawURL string) string {
	parts := make([]string, 0, 3)
	if showThread {
		parts = append(parts, "show_thread=on")
	}
	if hideParent {
		parts = append(parts, "hide_parent=on")
	}
	parts = append(parts, "url="+rawURL)
	return "?" + strings.Join(parts, "&")
}

func hostAllowed(host string, allowed []string) bool {
	for _, h := range allowed {
		if strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}
