package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRenderer_Render(t *testing.T) {
	// Given: journal stats
	buf := &bytes.Buffer{}
	r := NewStatsRenderer(buf, true)

	info := StatsInfo{
		JournalPath: "/home/u/.vigil/journal.db",
		SizeBytes:   2048,
		Batches:     42,
		Paths:       120,
		First:       time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		Last:        time.Now().Add(-2 * time.Minute),
		PerCategory: []CategoryStat{
			{Category: "added", Batches: 20, Paths: 60},
			{Category: "removed", Batches: 22, Paths: 60},
		},
	}

	// When: rendering
	err := r.Render(info)

	// Then: every section appears
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Journal: /home/u/.vigil/journal.db")
	assert.Contains(t, output, "Batches: 42")
	assert.Contains(t, output, "Paths:   120")
	assert.Contains(t, output, "2.0 KB")
	assert.Contains(t, output, "2026-08-20 10:00:00")
	assert.Contains(t, output, "2 minutes ago")
	assert.Contains(t, output, "Per category:")
	assert.Contains(t, output, "added:")
	assert.Contains(t, output, "20 batches, 60 paths")
}

func TestStatsRenderer_Render_EmptyJournal(t *testing.T) {
	// Given: stats from an empty journal
	buf := &bytes.Buffer{}
	r := NewStatsRenderer(buf, true)

	// When: rendering
	err := r.Render(StatsInfo{JournalPath: "/tmp/journal.db"})

	// Then: zero counts render without time or category sections
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Batches: 0")
	assert.NotContains(t, output, "First:")
	assert.NotContains(t, output, "Per category:")
}

func TestStatsRenderer_RenderJSON(t *testing.T) {
	// Given: journal stats
	buf := &bytes.Buffer{}
	r := NewStatsRenderer(buf, true)

	info := StatsInfo{
		JournalPath: "/tmp/journal.db",
		Batches:     5,
		Paths:       9,
		PerCategory: []CategoryStat{{Category: "renamed", Batches: 5, Paths: 9}},
	}

	// When: rendering as JSON
	err := r.RenderJSON(info)

	// Then: output decodes back to the same stats
	require.NoError(t, err)
	var decoded StatsInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, int64(5), decoded.Batches)
	assert.Equal(t, int64(9), decoded.Paths)
	require.Len(t, decoded.PerCategory, 1)
	assert.Equal(t, "renamed", decoded.PerCategory[0].Category)
}

func TestFormatTime_Relative(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", time.Now().Add(-10 * time.Second), "just now"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5 minutes ago"},
		{"one hour", time.Now().Add(-90 * time.Minute), "1 hour ago"},
		{"days", time.Now().Add(-49 * time.Hour), "2 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTime(tt.t))
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.bytes))
		})
	}
}
