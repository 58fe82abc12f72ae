// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crawlgate/crawlgate/internal/platform"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ContentRecord is one extracted content item plus its provenance.
type ContentRecord struct {
	ID       string
	Platform string
	Content  platform.Content
}

// ContentStoreConfig controls the Postgres connection pool used for content rows.
type ContentStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ContentStore writes extracted platform content into Postgres.
type ContentStore struct {
	pool  execCloser
	table string
}

// NewContentStore creates a Postgres-backed ContentStore using the provided config.
func NewContentStore(ctx context.Context, cfg ContentStoreConfig) (*ContentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "platform_contents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ContentStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewContentStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewContentStoreWithPool(pool execCloser, table string) (*ContentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "platform_contents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ContentStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ContentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveContent inserts one content row into Postgres.
func (s *ContentStore) SaveContent(ctx context.Context, rec ContentRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("content store is not configured")
	}
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	imagesJSON, err := json.Marshal(normalizeList(rec.Content.Images))
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	videosJSON, err := json.Marshal(normalizeList(rec.Content.Videos))
	if err != nil {
		return fmt.Errorf("marshal videos: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	platform,
	content_id,
	title,
	content,
	author,
	content_type,
	source_url,
	images,
	videos,
	crawled_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, s.table)

	args := []any{
		rec.ID,
		rec.Platform,
		rec.Content.ContentID,
		rec.Content.Title,
		rec.Content.Content,
		rec.Content.Author,
		rec.Content.ContentType,
		rec.Content.SourceURL,
		imagesJSON,
		videosJSON,
		rec.Content.CrawledAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func normalizeList(list []string) []string {
	if len(list) == 0 {
		return []string{}
	}
	return append([]string(nil), list...)
}
