package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kerosindigital/bsky.link/internal/analytics"
	"github.com/kerosindigital/bsky.link/internal/bsky"
	"github.com/kerosindigital/bsky.link/internal/cache"
	"github.com/kerosindigital/bsky.link/internal/cmdlog"
	"github.com/kerosindigital/bsky.link/internal/config"
	"github.com/kerosindigital/bsky.link/internal/jobs"
	"github.com/kerosindigital/bsky.link/internal/logging"
	"github.com/kerosindigital/bsky.link/internal/metrics"
	"github.com/kerosindigital/bsky.link/internal/server"
	"github.com/kerosindigital/bsky.link/internal/session"
	"github.com/kerosindigital/bsky.link/internal/store/viewlog"
	"github.com/kerosindigital/bsky.link/internal/theme"
	"github.com/kerosindigital/bsky.link/internal/view"
)

const defaultConfigPath = "./bskylink.yaml"

func main() {
	_ = godotenv.Load()
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var err error
	switch cmd {
	case "serve":
		err = cmdlog.Run("serve", cmdServe)
	case "init":
		err = cmdlog.Run("init", cmdInit)
	case "post":
		err = cmdlog.Run("post", cmdPost)
	case "feed":
		err = cmdlog.Run("feed", cmdFeed)
	case "stats":
		err = cmdlog.Run("stats", cmdStats)
	default:
		printHelp()
		return
	}
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: bskylink <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve   Run the web server")
	fmt.Println("  init    Create a config file at ./bskylink.yaml")
	fmt.Println("  post    Render one post url to the terminal")
	fmt.Println("  feed    Render a user's feed to the terminal")
	fmt.Println("  stats   Show hourly views and top targets from the view log")
}

// app is the wired service graph shared by serve, post and feed.
type app struct {
	cfg     config.Config
	client  *bsky.HTTPClient
	session *session.Manager
	cache   *cache.Cache[*view.PostPage]
	views   *view.Service
	viewlog *viewlog.DB
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func newApp(cfg config.Config) (*app, error) {
	if cfg.Credentials.Identifier == "" || cfg.Credentials.Password == "" {
		logging.Warn("missing_credentials", map[string]any{"hint": "set BSKY_IDENTIFIER and BSKY_PASSWORD"})
	}
	loc, err := time.LoadLocation(cfg.Render.Timezone)
	if err != nil {
		return nil, err
	}
	client := bsky.NewHTTPClient(bsky.Options{
		BaseURL:     cfg.Upstream.BaseURL,
		Timeout:     cfg.Upstream.Timeout,
		RPS:         cfg.Upstream.RPS,
		Burst:       cfg.Upstream.Burst,
		MaxAttempts: cfg.Upstream.MaxAttempts,
		BaseBackoff: cfg.Upstream.BaseBackoff,
	})
	mgr := session.NewManager(client, cfg.Credentials.Identifier, cfg.Credentials.Password, cfg.Session.Lifetime)
	client.SetTokenSource(mgr)

	pages := cache.New(cache.Options[*view.PostPage]{
		MaxEntries: cfg.Cache.MaxEntries,
		MaxSize:    cfg.Cache.MaxSize,
		TTL:        cfg.Cache.TTL,
		OnEvict:    func(_ string, reason cache.EvictReason) { metrics.IncEviction(string(reason)) },
	})

	a := &app{cfg: cfg, client: client, session: mgr, cache: pages}
	opts := view.Options{
		PermalinkBase: cfg.Server.PermalinkBase,
		ProfileBase:   cfg.Render.ProfileBase,
		AllowedHosts:  cfg.Render.AllowedHosts,
		Location:      loc,
	}
	if cfg.Storage.DBPath != "" {
		db, err := viewlog.Open(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open view log: %w", err)
		}
		a.viewlog = db
		opts.Recorder = db
	}
	a.views = view.NewService(client, mgr, pages, opts)
	return a, nil
}

func (a *app) Close() {
	if a.viewlog != nil {
		_ = a.viewlog.Close()
	}
}

func cmdServe() error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a failed first sign-in is retried by the first request
	_ = a.session.Acquire(ctx)
	metrics.StartServer(cfg.Server.MetricsAddr)

	go func() { _ = jobs.RunCachePurgeLoop(ctx, a.cache, cfg.Cache.PurgeInterval) }()
	if cfg.Session.KeepaliveInterval > 0 {
		go func() { _ = jobs.RunSessionKeepalive(ctx, a.session, cfg.Session.KeepaliveInterval) }()
	}

	srv, err := server.New(a.views, cfg.Server.StaticDir)
	if err != nil {
		return err
	}
	return srv.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}

func cmdInit() error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", defaultConfigPath, "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdPost() error {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	rawURL := fs.String("url", "", "bsky.app post url")
	showThread := fs.Bool("thread", false, "include the author's follow-up replies")
	hideParent := fs.Bool("hide-parent", false, "omit the parent post")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.views.ParseTarget(*rawURL, onFlag(*showThread), onFlag(*hideParent))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	page, err := a.views.Post(ctx, t)
	if err != nil {
		return err
	}
	if page.Parent != nil && page.Parent.Post != nil {
		fmt.Printf("  in reply to @%s: %s\n\n", page.Parent.Post.Author.Handle, page.Parent.Post.Record.Text)
	}
	fmt.Printf("%s (@%s)  %s\n%s\n", page.Author.Name(), page.Author.Handle, page.CreatedAt, page.Record.Text)
	if page.Embed.Type != "" {
		fmt.Printf("[%s embed]\n", page.Embed.Type)
	}
	fmt.Printf("replies=%d reposts=%d likes=%d\n", page.ReplyCount, page.RepostCount, page.LikeCount)
	for _, r := range page.Replies {
		fmt.Printf("---\n%s\n", r.Post.Record.Text)
	}
	fmt.Println("permalink:", page.URL)
	return nil
}

func cmdFeed() error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	user := fs.String("user", "", "handle or did")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	page, err := a.views.Feed(ctx, *user)
	if err != nil {
		return err
	}
	for _, p := range page.Posts {
		fmt.Printf("%s  @%s\n%s\n---\n", p.CreatedAt, p.Post.Author.Handle, p.Post.Record.Text)
	}
	fmt.Println("profile:", page.ProfileURL)
	return nil
}

func cmdStats() error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	hours := fs.Int("hours", 24, "look-back window in hours")
	top := fs.Int("top", 10, "number of top targets")
	_ = fs.Parse(os.Args[2:])
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if cfg.Storage.DBPath == "" {
		return errors.New("no view log configured (storage.dbPath or BSKYLINK_DB)")
	}
	db, err := viewlog.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	since := now.Add(-time.Duration(*hours) * time.Hour)
	views, err := db.LoadViewsRange(ctx, since, now.Add(time.Second), "")
	if err != nil {
		return err
	}
	b := analytics.HourlyViews(views)
	for _, k := range analytics.SortedBucketKeys(b) {
		fmt.Printf("%s -> %v\n", k.Format("2006-01-02 15:00"), b[k])
	}
	targets, err := db.TopTargets(ctx, since, *top)
	if err != nil {
		return err
	}
	for _, t := range targets {
		fmt.Printf("%6d  %s\n", t.Views, t.Target)
	}
	return nil
}

func onFlag(b bool) string {
	if b {
		return "on"
	}
	return ""
}
