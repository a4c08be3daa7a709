// Package view assembles the data behind the post and feed pages.
//
// A post view is checked against the response cache after the session is
// made fresh; a miss fetches the thread upstream, classifies its embed,
// flattens the author's follow-ups and stores the assembled page. Feed
// views are never cached.
package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kerosindigital/bsky.link/internal/bsky"
	"github.com/kerosindigital/bsky.link/internal/logging"
	"github.com/kerosindigital/bsky.link/internal/metrics"
	"github.com/kerosindigital/bsky.link/internal/model"
	"github.com/kerosindigital/bsky.link/internal/thread"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream error")
)

// Upstream is the read side of the XRPC client.
type Upstream interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	GetPostThread(ctx context.Context, uri string, depth int) (*model.ThreadNode, error)
	GetAuthorFeed(ctx context.Context, actor string) ([]model.FeedItem, error)
}

// Credentials keeps the upstream token valid.
type Credentials interface {
	EnsureFresh(ctx context.Context) error
}

// PageCache stores assembled post pages by cache key.
type PageCache interface {
	Get(key string) (*PostPage, bool)
	Set(key string, page *PostPage)
}

// Recorder receives one event per successfully served view.
type Recorder interface {
	RecordView(ctx context.Context, kind, target string, cacheHit bool)
}

// PostPage is the immutable data behind a post page. Cached pages are
// shared between requests and must not be modified.
type PostPage struct {
	Record      model.PostRecord
	Author      model.Author
	Embed       Embed
	URL         string // permalink on this service
	PostURL     string // the original bsky.app url
	ReplyCount  int
	LikeCount   int
	RepostCount int
	CreatedAt   string
	Replies     []*model.ThreadNode
	Parent      *model.ThreadNode
}

// FeedPost is one row of a feed page.
type FeedPost struct {
	Post      model.PostView
	Embed     Embed
	CreatedAt string
}

type FeedPage struct {
	Author     string
	Posts      []FeedPost
	URL        string
	ProfileURL string
}

type Options struct {
	PermalinkBase string
	ProfileBase   string
	AllowedHosts  []string
	Location      *time.Location
	Recorder      Recorder
}

// Service orchestrates credential checks, the cache and upstream reads.
type Service struct {
	up    Upstream
	creds Credentials
	cache PageCache
	opts  Options

	flight singleflight.Group
}

func NewService(up Upstream, creds Credentials, cache PageCache, opts Options) *Service {
	if opts.PermalinkBase == "" {
		opts.PermalinkBase = "https://bsky.link/"
	}
	if opts.ProfileBase == "" {
		opts.ProfileBase = "https://bsky.app/profile/"
	}
	if len(opts.AllowedHosts) == 0 {
		opts.AllowedHosts = DefaultAllowedHosts
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{up: up, creds: creds, cache: cache, opts: opts}
}

// ParseTarget validates rawURL against the configured host allow-list.
func (s *Service) ParseTarget(rawURL, showThread, hideParent string) (Target, error) {
	return ParseTarget(rawURL, showThread, hideParent, s.opts.AllowedHosts...)
}

// Post returns the page for t, from the cache when possible. Concurrent
// misses on the same key share one upstream fill; a caller whose ctx ends
// stops waiting without cancelling the fill for the others.
func (s *Service) Post(ctx context.Context, t Target) (*PostPage, error) {
	s.ensureFresh(ctx)

	if page, ok := s.cache.Get(t.Key); ok {
		s.countHit(ctx, t, true)
		return page, nil
	}

	ch := s.flight.DoChan(t.Key, func() (any, error) {
		// another flight may have stored the page since the first check
		if page, ok := s.cache.Get(t.Key); ok {
			return filled{page: page, hit: true}, nil
		}
		page, err := s.fillPost(context.WithoutCancel(ctx), t)
		if err != nil {
			return nil, err
		}
		s.cache.Set(t.Key, page)
		return filled{page: page}, nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			metrics.CoalescedFills.Inc()
		}
		if res.Err != nil {
			metrics.CacheMisses.Inc()
			return nil, res.Err
		}
		f := res.Val.(filled)
		s.countHit(ctx, t, f.hit)
		return f.page, nil
	case <-ctx.Done():
		metrics.CacheMisses.Inc()
		return nil, ctx.Err()
	}
}

// filled is the outcome of a post flight; hit marks a page found in the
// cache on the in-flight re-check.
type filled struct {
	page *PostPage
	hit  bool
}

func (s *Service) countHit(ctx context.Context, t Target, hit bool) {
	if hit {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}
	s.record(ctx, "post", t.RawURL, hit)
}

func (s *Service) fillPost(ctx context.Context, t Target) (*PostPage, error) {
	did := t.Handle
	if !strings.HasPrefix(did, "did:") {
		var err error
		did, err = s.up.ResolveHandle(ctx, t.Handle)
		if err != nil {
			return nil, upstreamErr("resolve handle", err)
		}
	}
	depth := 0
	if t.ShowThread {
		depth = thread.MaxDepth
	}
	th, err := s.up.GetPostThread(ctx, bsky.PostURI(did, t.PostID), depth)
	if err != nil {
		return nil, upstreamErr("get post thread", err)
	}
	if th == nil || th.Post == nil {
		return nil, fmt.Errorf("%w: thread has no post", ErrNotFound)
	}

	post := th.Post
	page := &PostPage{
		Record:      post.Record,
		Author:      post.Author,
		Embed:       ClassifyPostEmbed(post.Embed),
		URL:         s.opts.PermalinkBase + t.Key,
		PostURL:     t.RawURL,
		ReplyCount:  post.ReplyCount,
		LikeCount:   post.LikeCount,
		RepostCount: post.RepostCount,
		CreatedAt:   FormatTimestamp(post.Record.CreatedAt, s.opts.Location),
	}
	if t.ShowThread {
		page.Replies = thread.Flatten(th.Replies, post.Author.Handle)
	}
	if !t.HideParent {
		page.Parent = th.Parent
	}
	logging.Debug("post_view_filled", map[string]any{
		"key": t.Key, "embed": page.Embed.Type, "replies": len(page.Replies),
	})
	return page, nil
}

// Feed returns the latest posts of user. Nothing is cached.
func (s *Service) Feed(ctx context.Context, user string) (*FeedPage, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: empty user", ErrInvalidInput)
	}
	s.ensureFresh(ctx)

	items, err := s.up.GetAuthorFeed(ctx, user)
	if err != nil {
		return nil, upstreamErr("get author feed", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty feed", ErrNotFound)
	}

	page := &FeedPage{
		Author:     user,
		Posts:      make([]FeedPost, 0, len(items)),
		URL:        s.opts.PermalinkBase + "feed?user=" + user,
		ProfileURL: s.opts.ProfileBase + user,
	}
	embeds := 0
	for _, it := range items {
		fp := FeedPost{
			Post:      it.Post,
			Embed:     ClassifyFeedEmbed(it.Post.Embed),
			CreatedAt: FormatTimestamp(it.Post.Record.CreatedAt, s.opts.Location),
		}
		if fp.Embed.Type == EmbedRecord {
			embeds++
		}
		page.Posts = append(page.Posts, fp)
	}
	logging.Info("feed_view", map[string]any{"user": user, "posts": len(page.Posts), "embed_count": embeds})
	s.record(ctx, "feed", user, false)
	return page, nil
}

// ensureFresh never fails the request: a stale token is still sent and
// the upstream decides.
func (s *Service) ensureFresh(ctx context.Context) {
	if err := s.creds.EnsureFresh(ctx); err != nil {
		logging.Warn("session_not_fresh", map[string]any{"error": err.Error()})
	}
}

func (s *Service) record(ctx context.Context, kind, target string, hit bool) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordView(ctx, kind, target, hit)
	}
}

func upstreamErr(op string, err error) error {
	if bsky.IsNotFound(err) {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}
