package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kerosindigital/bsky.link/internal/cache"
	"github.com/kerosindigital/bsky.link/internal/model"
	"github.com/kerosindigital/bsky.link/internal/view"
)

type fakeViews struct {
	postErr error
	feedErr error
	panics  bool
	posts   atomic.Int32
}

func (f *fakeViews) ParseTarget(rawURL, showThread, hideParent string) (view.Target, error) {
	return view.ParseTarget(rawURL, showThread, hideParent)
}

func (f *fakeViews) Post(ctx context.Context, t view.Target) (*view.PostPage, error) {
	f.posts.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.postErr != nil {
		return nil, f.postErr
	}
	return &view.PostPage{
		Record:    model.PostRecord{Text: "hello <world>"},
		Author:    model.Author{Handle: "alice.bsky.social", DisplayName: "Alice"},
		Embed:     view.Embed{Type: view.EmbedImages, Images: []model.Image{{Thumb: "https://cdn/t.jpg", Alt: "a cat"}}},
		URL:       "https://bsky.link/" + t.Key,
		PostURL:   t.RawURL,
		CreatedAt: "March 5 2024 at 3:04:05 PM",
		LikeCount: 4,
	}, nil
}

func (f *fakeViews) Feed(ctx context.Context, user string) (*view.FeedPage, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: empty user", view.ErrInvalidInput)
	}
	if f.feedErr != nil {
		return nil, f.feedErr
	}
	return &view.FeedPage{
		Author: user,
		Posts:  []view.FeedPost{{Post: model.PostView{Record: model.PostRecord{Text: "first"}}, Embed: view.Embed{Type: view.EmbedRecord, Record: &model.EmbedRecord{Value: &model.PostRecord{Text: "quoted"}}}}},
		URL:    "https://bsky.link/feed?user=" + user,
	}, nil
}

func newTestServer(t *testing.T, v Views, staticDir string) *httptest.Server {
	t.Helper()
	s, err := New(v, staticDir)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, rawURL string) (int, string, http.Header) {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(b), resp.Header
}

func TestHomeWithoutURL(t *testing.T) {
	ts := newTestServer(t, &fakeViews{}, "")
	code, body, hdr := get(t, ts.URL+"/")
	if code != http.StatusOK || !strings.Contains(body, `name="url"`) {
		t.Fatalf("home: %d %s", code, body)
	}
	if hdr.Get("X-Request-ID") == "" {
		t.Fatalf("missing request id")
	}
}

func TestPostPageRenders(t *testing.T) {
	ts := newTestServer(t, &fakeViews{}, "")
	code, body, _ := get(t, ts.URL+"/?url=https://bsky.app/profile/alice.bsky.social/post/3k&show_thread=on")
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, body)
	}
	for _, want := range []string{"Alice", "hello &lt;world&gt;", "a cat", "March 5 2024 at 3:04:05 PM", "4 likes"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		v    *fakeViews
		path string
		code int
		msg  string
	}{
		{"bad host", &fakeViews{}, "/?url=https://example.com/profile/a/post/1", 400, msgInvalidURL},
		{"not found", &fakeViews{postErr: view.ErrNotFound}, "/?url=https://bsky.app/profile/a/post/1", 404, msgNoPost},
		{"upstream", &fakeViews{postErr: fmt.Errorf("%w: status 500", view.ErrUpstream)}, "/?url=https://bsky.app/profile/a/post/1", 502, msgGeneric},
		{"panic", &fakeViews{panics: true}, "/?url=https://bsky.app/profile/a/post/1", 500, msgGeneric},
		{"no user", &fakeViews{}, "/feed", 400, msgInvalidUser},
		{"empty feed", &fakeViews{feedErr: view.ErrNotFound}, "/feed?user=a", 404, msgNoPosts},
	}
	for _, tc := range cases {
		ts := newTestServer(t, tc.v, "")
		code, body, _ := get(t, ts.URL+tc.path)
		if code != tc.code || !strings.Contains(body, tc.msg) {
			t.Fatalf("%s: got %d %q", tc.name, code, body)
		}
		if strings.Contains(body, "status 500") {
			t.Fatalf("%s: upstream detail leaked", tc.name)
		}
	}
}

func TestInvalidHostNeverReachesUpstream(t *testing.T) {
	var calls atomic.Int32
	up := &countingUpstream{calls: &calls}
	c := cache.New(cache.Options[*view.PostPage]{MaxEntries: 10, MaxSize: 10, TTL: time.Minute})
	svc := view.NewService(up, up, c, view.Options{})
	ts := newTestServer(t, svc, "")
	for _, u := range []string{
		"https://evil.example/profile/a/post/1",
		"https://bsky.app.evil.example/profile/a/post/1",
		"javascript:alert(1)",
	} {
		code, _, _ := get(t, ts.URL+"/?url="+u)
		if code != http.StatusBadRequest {
			t.Fatalf("%s: status %d", u, code)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("upstream called %d times", calls.Load())
	}
}

type countingUpstream struct{ calls *atomic.Int32 }

func (c *countingUpstream) EnsureFresh(ctx context.Context) error {
	c.calls.Add(1)
	return nil
}

func (c *countingUpstream) ResolveHandle(ctx context.Context, handle string) (string, error) {
	c.calls.Add(1)
	return "", errors.New("unexpected")
}

func (c *countingUpstream) GetPostThread(ctx context.Context, uri string, depth int) (*model.ThreadNode, error) {
	c.calls.Add(1)
	return nil, errors.New("unexpected")
}

func (c *countingUpstream) GetAuthorFeed(ctx context.Context, actor string) ([]model.FeedItem, error) {
	c.calls.Add(1)
	return nil, errors.New("unexpected")
}

// threadUpstream serves one fixed thread and counts thread fetches.
type threadUpstream struct{ threads atomic.Int32 }

func (u *threadUpstream) EnsureFresh(ctx context.Context) error { return nil }

func (u *threadUpstream) ResolveHandle(ctx context.Context, handle string) (string, error) {
	return "did:plc:alice", nil
}

func (u *threadUpstream) GetPostThread(ctx context.Context, uri string, depth int) (*model.ThreadNode, error) {
	u.threads.Add(1)
	mk := func(text string) *model.PostView {
		return &model.PostView{
			Author: model.Author{Handle: "alice.bsky.social"},
			Record: model.PostRecord{Text: text, CreatedAt: "2024-03-05T15:04:05Z"},
		}
	}
	return &model.ThreadNode{
		Post:    mk("root"),
		Parent:  &model.ThreadNode{Post: mk("parent")},
		Replies: []*model.ThreadNode{{Post: mk("follow-up")}},
	}, nil
}

func (u *threadUpstream) GetAuthorFeed(ctx context.Context, actor string) ([]model.FeedItem, error) {
	return nil, errors.New("unexpected")
}

func TestQueryOrderSharesCacheEntry(t *testing.T) {
	up := &threadUpstream{}
	c := cache.New(cache.Options[*view.PostPage]{MaxEntries: 10, MaxSize: 10, TTL: time.Minute})
	ts := newTestServer(t, view.NewService(up, up, c, view.Options{}), "")

	u := url.QueryEscape("https://bsky.app/profile/alice.bsky.social/post/3k")
	code1, body1, _ := get(t, ts.URL+"/?show_thread=on&hide_parent=on&url="+u)
	code2, body2, _ := get(t, ts.URL+"/?url="+u+"&hide_parent=on&show_thread=t")
	if code1 != http.StatusOK || code2 != http.StatusOK {
		t.Fatalf("status: %d %d", code1, code2)
	}
	if got := up.threads.Load(); got != 1 {
		t.Fatalf("expected one upstream fetch, got %d", got)
	}
	if body1 != body2 {
		t.Fatalf("bodies differ:\n%s\n---\n%s", body1, body2)
	}
	if !strings.Contains(body1, "follow-up") || strings.Contains(body1, ">parent<") {
		t.Fatalf("flags not applied: %s", body1)
	}
}

func TestFeedPage(t *testing.T) {
	ts := newTestServer(t, &fakeViews{}, "")
	code, body, _ := get(t, ts.URL+"/feed?user=alice.bsky.social")
	if code != http.StatusOK || !strings.Contains(body, "quoted") || !strings.Contains(body, "@alice.bsky.social") {
		t.Fatalf("feed: %d %s", code, body)
	}
}

func TestStaticAndHealth(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, &fakeViews{}, dir)
	if code, body, _ := get(t, ts.URL+"/style.css"); code != http.StatusOK || body != "body{}" {
		t.Fatalf("static: %d %q", code, body)
	}
	if code, _, _ := get(t, ts.URL+"/health"); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
	if code, body, _ := get(t, ts.URL+"/metrics"); code != http.StatusOK || !strings.Contains(body, "bskylink_") {
		t.Fatalf("metrics: %d", code)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	ts := newTestServer(t, &fakeViews{}, "")
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("request id: %q", got)
	}
}
