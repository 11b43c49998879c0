package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilfs/vigil/internal/source"
)

const (
	testWindow      = 200 * time.Millisecond
	testCorrelation = 50 * time.Millisecond
)

func newTestClassifier() *classifier {
	return newClassifier(testWindow, testCorrelation)
}

// categories reduces flushed classifications to a category → paths map.
func categories(flushed []classified) map[Category][]string {
	out := make(map[Category][]string)
	for _, cl := range flushed {
		out[cl.category] = append(out[cl.category], cl.rel)
	}
	return out
}

func TestClassifier_CreateThenWrite_IsAdded(t *testing.T) {
	// Given: a create followed by a write inside one window
	c := newTestClassifier()
	base := time.Now()
	c.observe("file.json", "", source.KindCreate, base)
	c.observe("file.json", "", source.KindWrite, base.Add(10*time.Millisecond))

	// When: the window elapses
	flushed := c.sweep(base.Add(10*time.Millisecond + testWindow))

	// Then: exactly one ADDED, no CHANGED
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryAdded, flushed[0].category)
	assert.Equal(t, "file.json", flushed[0].rel)
}

func TestClassifier_CreateThenRemove_IsNothing(t *testing.T) {
	// Given: a file born and deleted inside one window
	c := newTestClassifier()
	base := time.Now()
	c.observe("tmp.json", "", source.KindCreate, base)
	c.observe("tmp.json", "", source.KindRemove, base.Add(20*time.Millisecond))

	// Then: nothing flushes, ever
	assert.Empty(t, c.sweep(base.Add(time.Second)))
	assert.Zero(t, c.pendingCount())
}

func TestClassifier_WriteAlone_IsChanged(t *testing.T) {
	// Given: a write to an untracked path
	c := newTestClassifier()
	base := time.Now()
	c.observe("file.json", "", source.KindWrite, base)

	// Then: it settles as CHANGED
	flushed := c.sweep(base.Add(testWindow))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryChanged, flushed[0].category)
}

func TestClassifier_WriteThenRemove_IsRemoved(t *testing.T) {
	// Given: a modify then a delete inside one window
	c := newTestClassifier()
	base := time.Now()
	c.observe("file.json", "", source.KindWrite, base)
	c.observe("file.json", "", source.KindRemove, base.Add(10*time.Millisecond))

	// Then: the removal wins
	flushed := c.sweep(base.Add(time.Second))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryRemoved, flushed[0].category)
}

func TestClassifier_RemoveThenCreate_IsChanged(t *testing.T) {
	// Given: a delete then a recreate inside one window
	c := newTestClassifier()
	base := time.Now()
	c.observe("file.json", "", source.KindRemove, base)
	c.observe("file.json", "", source.KindCreate, base.Add(10*time.Millisecond))

	// Then: the path was replaced in place
	flushed := c.sweep(base.Add(time.Second))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryChanged, flushed[0].category)
}

func TestClassifier_ReadAlone_IsRead(t *testing.T) {
	// Given: a read of an untracked path
	c := newTestClassifier()
	base := time.Now()
	c.observe("file.json", "", source.KindRead, base)

	flushed := c.sweep(base.Add(testWindow))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryRead, flushed[0].category)
}

func TestClassifier_ReadNeverDowngrades(t *testing.T) {
	// Given: a write followed by a read
	c := newTestClassifier()
	base := time.Now()
	c.observe("file.json", "", source.KindWrite, base)
	c.observe("file.json", "", source.KindRead, base.Add(10*time.Millisecond))

	// Then: the pending CHANGED survives
	flushed := c.sweep(base.Add(time.Second))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryChanged, flushed[0].category)
}

func TestClassifier_ReadExtendsQuietPeriod(t *testing.T) {
	// Given: a write whose window would end, but a read lands first
	c := newTestClassifier()
	base := time.Now()
	c.observe("file.json", "", source.KindWrite, base)
	c.observe("file.json", "", source.KindRead, base.Add(150*time.Millisecond))

	// Then: the original deadline no longer flushes
	assert.Empty(t, c.sweep(base.Add(testWindow)))

	// And: the extended one does
	flushed := c.sweep(base.Add(150*time.Millisecond + testWindow))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryChanged, flushed[0].category)
}

func TestClassifier_RenamePair_IsRenamedUnderDestination(t *testing.T) {
	// Given: a correlated rename pair
	c := newTestClassifier()
	base := time.Now()
	c.observe("old.json", "", source.KindRenameFrom, base)
	c.observe("new.json", "old.json", source.KindRenameTo, base.Add(5*time.Millisecond))

	// Then: one RENAMED under the destination, nothing for the source
	flushed := c.sweep(base.Add(time.Second))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryRenamed, flushed[0].category)
	assert.Equal(t, "new.json", flushed[0].rel)
	assert.Equal(t, "old.json", flushed[0].renamedFrom)
}

func TestClassifier_RenameAbsorbsWindowBornSource(t *testing.T) {
	// Given: a file created and immediately moved inside one window
	c := newTestClassifier()
	base := time.Now()
	c.observe("draft.json", "", source.KindCreate, base)
	c.observe("draft.json", "", source.KindRenameFrom, base.Add(20*time.Millisecond))
	c.observe("final.json", "draft.json", source.KindRenameTo, base.Add(21*time.Millisecond))

	// Then: only the move is reported; the source never reports ADDED
	flushed := c.sweep(base.Add(time.Second))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryRenamed, flushed[0].category)
	assert.Equal(t, "final.json", flushed[0].rel)
}

func TestClassifier_UnpairedRenameFrom_DegradesToRemoved(t *testing.T) {
	// Given: a pre-existing file moved out of the filtered set
	c := newTestClassifier()
	base := time.Now()
	c.observe("gone.json", "", source.KindRenameFrom, base)

	// When: the correlation window closes with no destination
	flushed := c.sweep(base.Add(testWindow + time.Millisecond))

	// Then: the source is reported removed
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryRemoved, flushed[0].category)
	assert.Equal(t, "gone.json", flushed[0].rel)
}

func TestClassifier_UnpairedRenameOfWindowBornSource_IsNothing(t *testing.T) {
	// Given: a file created then moved away, all inside one window
	c := newTestClassifier()
	base := time.Now()
	c.observe("blip.json", "", source.KindCreate, base)
	c.observe("blip.json", "", source.KindRenameFrom, base.Add(10*time.Millisecond))

	// Then: like create+remove, nothing is reported
	assert.Empty(t, c.sweep(base.Add(time.Second)))
	assert.Zero(t, c.pendingCount())
}

func TestClassifier_RenameToWithoutOrigin_IsAdded(t *testing.T) {
	// Given: a move whose source never matched the filter
	c := newTestClassifier()
	base := time.Now()
	c.observe("incoming.json", "", source.KindRenameTo, base)

	// Then: from the caller's view the path simply appeared
	flushed := c.sweep(base.Add(testWindow))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryAdded, flushed[0].category)
}

func TestClassifier_RenameThenWrite_StaysRenamed(t *testing.T) {
	// Given: a rename and a write to the destination inside one window
	c := newTestClassifier()
	base := time.Now()
	c.observe("old.json", "", source.KindRenameFrom, base)
	c.observe("new.json", "old.json", source.KindRenameTo, base.Add(5*time.Millisecond))
	c.observe("new.json", "", source.KindWrite, base.Add(10*time.Millisecond))

	flushed := c.sweep(base.Add(time.Second))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryRenamed, flushed[0].category)
}

func TestClassifier_RenameThenRemove_IsRemoved(t *testing.T) {
	// Given: a rename whose destination is deleted inside the window
	c := newTestClassifier()
	base := time.Now()
	c.observe("old.json", "", source.KindRenameFrom, base)
	c.observe("new.json", "old.json", source.KindRenameTo, base.Add(5*time.Millisecond))
	c.observe("new.json", "", source.KindRemove, base.Add(10*time.Millisecond))

	flushed := c.sweep(base.Add(time.Second))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryRemoved, flushed[0].category)
	assert.Equal(t, "new.json", flushed[0].rel)
}

func TestClassifier_SourceRecreatedAfterMoveAway_IsChanged(t *testing.T) {
	// Given: a pre-existing file moved away, then a new file created at
	// the old path before the correlation window closes
	c := newTestClassifier()
	base := time.Now()
	c.observe("busy.json", "", source.KindRenameFrom, base)
	c.observe("busy.json", "", source.KindCreate, base.Add(10*time.Millisecond))

	// Then: net effect is a replacement, not an addition
	flushed := c.sweep(base.Add(time.Second))
	require.Len(t, flushed, 1)
	assert.Equal(t, CategoryChanged, flushed[0].category)
}

func TestClassifier_FlushOrderFollowsDeadlines(t *testing.T) {
	// Given: three paths settling at staggered times
	c := newTestClassifier()
	base := time.Now()
	c.observe("a.json", "", source.KindCreate, base)
	c.observe("b.json", "", source.KindCreate, base.Add(10*time.Millisecond))
	c.observe("c.json", "", source.KindCreate, base.Add(20*time.Millisecond))

	// When: one sweep covers all deadlines
	flushed := c.sweep(base.Add(time.Second))

	// Then: flush order follows deadline order
	require.Len(t, flushed, 3)
	assert.Equal(t, "a.json", flushed[0].rel)
	assert.Equal(t, "b.json", flushed[1].rel)
	assert.Equal(t, "c.json", flushed[2].rel)
}

func TestClassifier_SweepLeavesUnexpiredEntries(t *testing.T) {
	// Given: one settled and one fresh entry
	c := newTestClassifier()
	base := time.Now()
	c.observe("old.json", "", source.KindCreate, base)
	c.observe("fresh.json", "", source.KindCreate, base.Add(100*time.Millisecond))

	// When: sweeping between the two deadlines
	flushed := c.sweep(base.Add(testWindow))

	// Then: only the settled entry flushes
	require.Len(t, flushed, 1)
	assert.Equal(t, "old.json", flushed[0].rel)
	assert.Equal(t, 1, c.pendingCount())
}

func TestClassifier_NextDeadline(t *testing.T) {
	c := newTestClassifier()
	base := time.Now()

	// Given: no state
	_, ok := c.nextDeadline()
	assert.False(t, ok)

	// Given: a pending entry and a younger rename origin
	c.observe("a.json", "", source.KindCreate, base)
	c.observe("b.json", "", source.KindRenameFrom, base.Add(10*time.Millisecond))

	// Then: the origin's correlation expiry comes first
	dl, ok := c.nextDeadline()
	require.True(t, ok)
	assert.Equal(t, base.Add(10*time.Millisecond+testCorrelation), dl)
}

func TestClassifier_EndToEndScenario(t *testing.T) {
	// Given: the canonical watch sequence for pattern **/*.{json*,bin}:
	// write file.bin and file.json, move file.json to file.jsonc inside
	// the json's window, remove file.bin, append to file.jsonc, remove
	// file.jsonc, each later step in its own window
	c := newTestClassifier()
	base := time.Now()
	all := make(map[Category][]string)
	collect := func(now time.Time) {
		for cat, paths := range categories(c.sweep(now)) {
			all[cat] = append(all[cat], paths...)
		}
	}

	c.observe("file.bin", "", source.KindCreate, base)
	c.observe("file.bin", "", source.KindWrite, base.Add(time.Millisecond))
	c.observe("file.json", "", source.KindCreate, base.Add(2*time.Millisecond))
	c.observe("file.json", "", source.KindWrite, base.Add(3*time.Millisecond))

	c.observe("file.json", "", source.KindRenameFrom, base.Add(50*time.Millisecond))
	c.observe("file.jsonc", "file.json", source.KindRenameTo, base.Add(51*time.Millisecond))

	collect(base.Add(300 * time.Millisecond))

	c.observe("file.bin", "", source.KindRemove, base.Add(400*time.Millisecond))
	c.observe("file.jsonc", "", source.KindWrite, base.Add(410*time.Millisecond))

	collect(base.Add(700 * time.Millisecond))

	c.observe("file.jsonc", "", source.KindRemove, base.Add(800*time.Millisecond))

	collect(base.Add(1100 * time.Millisecond))

	// Then: each category saw exactly the expected paths
	assert.Equal(t, []string{"file.bin"}, all[CategoryAdded],
		"file.json's creation is absorbed by the rename")
	assert.Equal(t, []string{"file.jsonc"}, all[CategoryRenamed])
	assert.Equal(t, []string{"file.bin", "file.jsonc"}, all[CategoryRemoved])
	assert.Equal(t, []string{"file.jsonc"}, all[CategoryChanged])
	assert.Empty(t, all[CategoryRead])
	assert.Zero(t, c.pendingCount())
}
