// Package server is the inbound HTTP surface: the home, post and feed
// pages plus health and metrics endpoints.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kerosindigital/bsky.link/internal/logging"
	"github.com/kerosindigital/bsky.link/internal/metrics"
	"github.com/kerosindigital/bsky.link/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	msgInvalidURL  = "Invalid URL"
	msgInvalidUser = "Invalid user"
	msgNoPost      = "Post not found"
	msgNoPosts     = "No posts found"
	msgGeneric     = "There was an error loading this page."
)

// Views is what the handlers need from the view service.
type Views interface {
	ParseTarget(rawURL, showThread, hideParent string) (view.Target, error)
	Post(ctx context.Context, t view.Target) (*view.PostPage, error)
	Feed(ctx context.Context, user string) (*view.FeedPage, error)
}

type Server struct {
	views     Views
	staticDir string
	tmpl      *template.Template
	router    *mux.Router
}

// New builds the router. staticDir is served for any path no page claims;
// empty disables static files.
func New(views Views, staticDir string) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{views: views, staticDir: staticDir, tmpl: tmpl}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(requestMiddleware, s.recoverMiddleware)
	r.HandleFunc("/", s.handlePost).Methods(http.MethodGet).Name("post")
	r.HandleFunc("/feed", s.handleFeed).Methods(http.MethodGet).Name("feed")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet).Name("health")
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet).Name("metrics")
	if s.staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir))).Methods(http.MethodGet).Name("static")
	}
	s.router = r
}

func (s *Server) Handler() http.Handler { return s.router }

// handlePost renders the home page without a url parameter and the post
// page otherwise.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawURL := q.Get("url")
	if rawURL == "" {
		s.render(w, http.StatusOK, "home.html", nil)
		return
	}
	t, err := s.views.ParseTarget(rawURL, q.Get("show_thread"), q.Get("hide_parent"))
	if err != nil {
		s.fail(w, r, err, msgInvalidURL, msgNoPost)
		return
	}
	page, err := s.views.Post(r.Context(), t)
	if err != nil {
		s.fail(w, r, err, msgInvalidURL, msgNoPost)
		return
	}
	s.render(w, http.StatusOK, "post.html", page)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	page, err := s.views.Feed(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		s.fail(w, r, err, msgInvalidUser, msgNoPosts)
		return
	}
	s.render(w, http.StatusOK, "feed.html", page)
}

// fail maps an error onto an opaque error page; upstream detail is only
// logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, invalidMsg, notFoundMsg string) {
	status, msg := http.StatusBadGateway, msgGeneric
	switch {
	case errors.Is(err, view.ErrInvalidInput):
		status, msg = http.StatusBadRequest, invalidMsg
	case errors.Is(err, view.ErrNotFound):
		status, msg = http.StatusNotFound, notFoundMsg
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	logging.Warn("view_failed", map[string]any{
		"request_id": RequestIDFromContext(r.Context()),
		"status":     status,
		"error":      err.Error(),
	})
	s.renderError(w, status, msg)
}

func (s *Server) renderError(w http.ResponseWriter, status int, msg string) {
	s.render(w, status, "error.html", map[string]string{"Error": msg})
}

// render executes into a buffer first so a template failure still yields
// a clean 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("template_failed", map[string]any{"template": name, "error": err.Error()})
		http.Error(w, msgGeneric, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// Run serves on addr until ctx is done, then drains in-flight requests
// for up to shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logging.Info("server_started", map[string]any{"addr": addr})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logging.Info("server_stopping", nil)
	return srv.Shutdown(sctx)
}
