package bsky

import (
	"context"
	"errors"

	"github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"

	"github.com/kerosindigital/bsky.link/internal/model"
)

const (
	nsidResolveHandle = "com.atproto.identity.resolveHandle"
	nsidGetPostThread = "app.bsky.feed.getPostThread"
	nsidGetAuthorFeed = "app.bsky.feed.getAuthorFeed"
)

// ResolveHandle maps a handle to its DID.
func (c *HTTPClient) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if handle == "" {
		return "", errors.New("resolveHandle: empty handle")
	}
	out, err := atproto.IdentityResolveHandle(ctx, c.authed(), handle)
	if err != nil {
		return "", wrapErr(nsidResolveHandle, err)
	}
	if out.Did == "" {
		return "", &APIError{Endpoint: nsidResolveHandle, Status: 404, Code: "NotFound", Message: "empty did"}
	}
	return out.Did, nil
}

// GetPostThread fetches the thread rooted at an at:// post URI. A positive
// depth bounds how many reply levels the app view returns; zero leaves the
// parameter to the server default.
// The returned node is nil when the payload carries no thread.
func (c *HTTPClient) GetPostThread(ctx context.Context, uri string, depth int) (*model.ThreadNode, error) {
	if depth < 0 {
		depth = 0
	}
	out, err := appbsky.FeedGetPostThread(ctx, c.authed(), int64(depth), 0, uri)
	if err != nil {
		return nil, wrapErr(nsidGetPostThread, err)
	}
	if out.Thread == nil {
		return nil, nil
	}
	t := out.Thread
	return threadNode(t.FeedDefs_ThreadViewPost, t.FeedDefs_NotFoundPost, t.FeedDefs_BlockedPost), nil
}

// GetAuthorFeed returns the most recent page of an actor's feed.
func (c *HTTPClient) GetAuthorFeed(ctx context.Context, actor string) ([]model.FeedItem, error) {
	if actor == "" {
		return nil, errors.New("getAuthorFeed: empty actor")
	}
	out, err := appbsky.FeedGetAuthorFeed(ctx, c.authed(), actor, "", "", 0)
	if err != nil {
		return nil, wrapErr(nsidGetAuthorFeed, err)
	}
	items := make([]model.FeedItem, 0, len(out.Feed))
	for _, fv := range out.Feed {
		if fv == nil || fv.Post == nil {
			continue
		}
		items = append(items, model.FeedItem{Post: *postView(fv.Post)})
	}
	return items, nil
}

// PostURI builds the at:// URI of a post record.
func PostURI(did, rkey string) string {
	return "at://" + did + "/app.bsky.feed.post/" + rkey
}
