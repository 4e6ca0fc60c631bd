package dx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// CachingResolver wraps another Resolver with an SQLite-backed cache of
// URL to record-id resolutions, so repeated compilations of the same
// document do not re-query the platform.
type CachingResolver struct {
	inner  Resolver
	db     *sql.DB
	logger *slog.Logger
}

// NewCachingResolver opens (or creates) the cache database at dbPath
// and returns a resolver delegating misses to inner. Use ":memory:"
// for an in-memory cache (useful in tests).
func NewCachingResolver(dbPath string, inner Resolver, logger *slog.Logger) (*CachingResolver, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	c := &CachingResolver{
		inner:  inner,
		db:     db,
		logger: logger.With("component", "dx-cache"),
	}
	if err := c.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database connection.
func (c *CachingResolver) Close() error {
	return c.db.Close()
}

func (c *CachingResolver) migrate(ctx context.Context) error {
	c.logger.Debug("sql", "op", "migrate")
	_, err := c.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS resolutions (
			url         TEXT PRIMARY KEY,
			record_id   TEXT NOT NULL,
			resolved_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate resolutions: %w", err)
	}
	return nil
}

// ResolveURL returns the cached record id when present, otherwise asks
// the inner resolver and stores the result.
func (c *CachingResolver) ResolveURL(ctx context.Context, url string) (string, error) {
	var id string
	err := c.db.QueryRowContext(ctx,
		`SELECT record_id FROM resolutions WHERE url = ?`, url).Scan(&id)
	switch {
	case err == nil:
		c.logger.Debug("sql", "op", "select", "table", "resolutions", "url", url, "hit", true)
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("query resolution cache: %w", err)
	}

	id, err = c.inner.ResolveURL(ctx, url)
	if err != nil {
		return "", err
	}

	c.logger.Debug("sql", "op", "insert", "table", "resolutions", "url", url)
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO resolutions (url, record_id, resolved_at) VALUES (?, ?, ?)`,
		url, id, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert resolution: %w", err)
	}
	return id, nil
}
