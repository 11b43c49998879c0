package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilfs/vigil/internal/watch"
)

func TestJournal_RecordAndTail(t *testing.T) {
	// Given: empty in-memory journal
	j, err := Open("")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	// When: batches are recorded
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryAdded,
		Paths:    []string{"a.json", "b.json"},
	}))
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryRemoved,
		Paths:    []string{"a.json"},
	}))

	// Then: tail returns them newest first with paths in delivery order
	entries, err := j.Tail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, watch.CategoryRemoved, entries[0].Category)
	assert.Equal(t, []string{"a.json"}, entries[0].Paths)
	assert.Equal(t, watch.CategoryAdded, entries[1].Category)
	assert.Equal(t, []string{"a.json", "b.json"}, entries[1].Paths)
	assert.False(t, entries[0].RecordedAt.IsZero())
}

func TestJournal_TailHonorsLimit(t *testing.T) {
	// Given: a journal with three batches
	j, err := Open("")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	for _, p := range []string{"1.json", "2.json", "3.json"} {
		require.NoError(t, j.Record(ctx, watch.Batch{
			Category: watch.CategoryChanged,
			Paths:    []string{p},
		}))
	}

	// When: tailing two
	entries, err := j.Tail(ctx, 2)
	require.NoError(t, err)

	// Then: the two newest come back
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"3.json"}, entries[0].Paths)
	assert.Equal(t, []string{"2.json"}, entries[1].Paths)
}

func TestJournal_TailCategoryFilters(t *testing.T) {
	// Given: a journal with mixed categories
	j, err := Open("")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryAdded,
		Paths:    []string{"a.json"},
	}))
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryRemoved,
		Paths:    []string{"a.json"},
	}))
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryAdded,
		Paths:    []string{"b.json"},
	}))

	// When: tailing one category
	entries, err := j.TailCategory(ctx, watch.CategoryAdded, 10)
	require.NoError(t, err)

	// Then: only that category comes back, newest first
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"b.json"}, entries[0].Paths)
	assert.Equal(t, []string{"a.json"}, entries[1].Paths)
	for _, e := range entries {
		assert.Equal(t, watch.CategoryAdded, e.Category)
	}
}

func TestJournal_EmptyBatchIsNotRecorded(t *testing.T) {
	j, err := Open("")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	require.NoError(t, j.Record(ctx, watch.Batch{Category: watch.CategoryAdded}))

	entries, err := j.Tail(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournal_Stats(t *testing.T) {
	// Given: a journal with mixed categories
	j, err := Open("")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryAdded,
		Paths:    []string{"a.json", "b.json"},
	}))
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryAdded,
		Paths:    []string{"c.json"},
	}))
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryRenamed,
		Paths:    []string{"d.json"},
	}))

	// When: aggregating
	stats, err := j.Stats(ctx)
	require.NoError(t, err)

	// Then: totals and per-category counts line up
	assert.Equal(t, int64(3), stats.Batches)
	assert.Equal(t, int64(4), stats.Paths)
	assert.False(t, stats.First.IsZero())
	assert.False(t, stats.Last.IsZero())
	assert.True(t, !stats.Last.Before(stats.First))

	require.Len(t, stats.PerCategory, 2)
	assert.Equal(t, CategoryStats{Category: "added", Batches: 2, Paths: 3}, stats.PerCategory[0])
	assert.Equal(t, CategoryStats{Category: "renamed", Batches: 1, Paths: 1}, stats.PerCategory[1])
}

func TestJournal_StatsOnEmptyJournal(t *testing.T) {
	j, err := Open("")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	stats, err := j.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Batches)
	assert.Zero(t, stats.Paths)
	assert.True(t, stats.First.IsZero())
	assert.Empty(t, stats.PerCategory)
}

func TestJournal_PersistsAcrossReopen(t *testing.T) {
	// Given: a journal written to disk and closed
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryAdded,
		Paths:    []string{"a.json"},
	}))
	require.NoError(t, j.Close())

	// When: reopened
	j2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = j2.Close() }()

	// Then: the batch is still there
	entries, err := j2.Tail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"a.json"}, entries[0].Paths)
}

func TestJournal_SecondWriterIsRejected(t *testing.T) {
	// Given: a journal held open for writing
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	// When: a second writer tries to open the same file
	_, err = Open(path)

	// Then: the lock wins
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestJournal_ReadOnlySeesWriterData(t *testing.T) {
	// Given: a journal being written
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryChanged,
		Paths:    []string{"x.json"},
	}))

	// When: a read-only handle opens alongside it
	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer func() { _ = ro.Close() }()

	// Then: it reads the data but cannot write
	entries, err := ro.Tail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	err = ro.Record(ctx, watch.Batch{Category: watch.CategoryAdded, Paths: []string{"y"}})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestOpenReadOnly_FailsOnMissingFile(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
}

func TestJournal_ClearsCorruptedFile(t *testing.T) {
	// Given: a path holding garbage instead of a database
	path := filepath.Join(t.TempDir(), "journal.db")
	require.NoError(t, os.WriteFile(path, []byte("not a sqlite file"), 0o644))

	// When: opening for writing
	j, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	// Then: the journal starts fresh and is usable
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryAdded,
		Paths:    []string{"a.json"},
	}))
	stats, err := j.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Batches)
}

func TestJournal_CloseIsIdempotent(t *testing.T) {
	j, err := Open("")
	require.NoError(t, err)

	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	_, err = j.Tail(context.Background(), 10)
	require.Error(t, err)
}

func TestJournal_RecordedTimesAdvance(t *testing.T) {
	j, err := Open("")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	before := time.Now().Add(-time.Second)
	require.NoError(t, j.Record(ctx, watch.Batch{
		Category: watch.CategoryAdded,
		Paths:    []string{"a.json"},
	}))

	entries, err := j.Tail(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].RecordedAt.After(before))
}
