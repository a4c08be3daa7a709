// Package viewlog records served page views in SQLite. It holds view
// events only, never cached pages or session tokens.
package viewlog

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kerosindigital/bsky.link/internal/logging"
)

// DB wraps the SQLite view log.
type DB struct{ sql *sql.DB }

// View is one served page.
type View struct {
	TS       time.Time
	Kind     string // "post" or "feed"
	Target   string
	CacheHit bool
}

// TargetCount is a target and how many times it was viewed.
type TargetCount struct {
	Target string
	Views  int
}

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		d.SetMaxOpenConns(1)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS views (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  kind TEXT NOT NULL,
	  target TEXT NOT NULL,
	  cache_hit INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_views_ts ON views(ts);
	`)
	return err
}

// PutView stores one view.
func (d *DB) PutView(ctx context.Context, v View) error {
	hit := 0
	if v.CacheHit {
		hit = 1
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO views(ts, kind, target, cache_hit) VALUES(?,?,?,?)`,
		v.TS.Unix(), v.Kind, v.Target, hit)
	return err
}

// RecordView stores a view stamped now. Failures are logged, never
// returned, so a broken log cannot fail a page.
func (d *DB) RecordView(ctx context.Context, kind, target string, cacheHit bool) {
	v := View{TS: time.Now().UTC(), Kind: kind, Target: target, CacheHit: cacheHit}
	if err := d.PutView(context.WithoutCancel(ctx), v); err != nil {
		logging.Error("viewlog_put_failed", map[string]any{"kind": kind, "error": err.Error()})
	}
}

// LoadViewsRange returns views in [start, end), oldest first. An empty
// kind matches all kinds.
func (d *DB) LoadViewsRange(ctx context.Context, start, end time.Time, kind string) ([]View, error) {
	var rows *sql.Rows
	var err error
	if kind == "" {
		rows, err = d.sql.QueryContext(ctx, `SELECT ts, kind, target, cache_hit FROM views WHERE ts>=? AND ts<? ORDER BY ts, id`, start.Unix(), end.Unix())
	} else {
		rows, err = d.sql.QueryContext(ctx, `SELECT ts, kind, target, cache_hit FROM views WHERE ts>=? AND ts<? AND kind=? ORDER BY ts, id`, start.Unix(), end.Unix(), kind)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []View
	for rows.Next() {
		var ts int64
		var v View
		var hit int
		if err := rows.Scan(&ts, &v.Kind, &v.Target, &hit); err != nil {
			return nil, err
		}
		v.TS = time.Unix(ts, 0).UTC()
		v.CacheHit = hit != 0
		out = append(out, v)
	}
	return out, rows.Err()
}

// TopTargets returns the most viewed targets since the given time.
func (d *DB) TopTargets(ctx context.Context, since time.Time, limit int) ([]TargetCount, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT target, COUNT(*) AS n FROM views WHERE ts>=? GROUP BY target ORDER BY n DESC, target LIMIT ?`, since.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TargetCount
	for rows.Next() {
		var tc TargetCount
		if err := rows.Scan(&tc.Target, &tc.Views); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
