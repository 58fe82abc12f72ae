// Package storage defines the persistence seam for extracted content.
package storage

import (
	"context"

	"github.com/crawlgate/crawlgate/internal/storage/postgres"
)

// ContentSaver persists extracted platform content.
type ContentSaver interface {
	SaveContent(ctx context.Context, rec postgres.ContentRecord) error
}

// Noop discards everything. Used when no database is configured.
type Noop struct{}

// SaveContent drops the record.
func (Noop) SaveContent(ctx context.Context, rec postgres.ContentRecord) error { return nil }
