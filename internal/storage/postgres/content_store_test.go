package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/crawlgate/crawlgate/internal/platform"
)

func TestSaveContentInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewContentStoreWithPool(mock, "platform_contents")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()

	rec := ContentRecord{
		ID:       "uuid-v7",
		Platform: "xiaohongshu",
		Content: platform.Content{
			ContentID:   "682d7a17000000000f0338e2",
			Title:       "coffee shop notes",
			Content:     "body text",
			Author:      "coffee_lover",
			ContentType: "image-text",
			Images:      []string{"https://sns-img.xhscdn.com/a.jpg"},
			SourceURL:   "https://www.xiaohongshu.com/explore/682d7a17000000000f0338e2",
			CrawledAt:   now,
		},
	}

	mock.ExpectExec("INSERT INTO platform_contents").
		WithArgs(
			rec.ID,
			rec.Platform,
			rec.Content.ContentID,
			rec.Content.Title,
			rec.Content.Content,
			rec.Content.Author,
			rec.Content.ContentType,
			rec.Content.SourceURL,
			[]byte(`["https://sns-img.xhscdn.com/a.jpg"]`),
			[]byte(`[]`),
			rec.Content.CrawledAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.SaveContent(context.Background(), rec)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveContentRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewContentStoreWithPool(mock, "")
	require.NoError(t, err)

	err = store.SaveContent(context.Background(), ContentRecord{Platform: "xiaohongshu"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewContentStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewContentStoreWithPool(mock, "bad-table;drop")
	require.Error(t, err)

	_, err = NewContentStoreWithPool(nil, "platform_contents")
	require.Error(t, err)
}
