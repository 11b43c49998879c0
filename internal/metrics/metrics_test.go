package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Singleton(t *testing.T) {
	ResetForTesting()

	// When: constructing twice
	a := New()
	b := New()

	// Then: the same instance comes back
	assert.Same(t, a, b)
}

func TestMetrics_Record(t *testing.T) {
	ResetForTesting()
	m := New()

	// When: recording activity
	m.RecordRawEvent("notify", "CREATE")
	m.RecordRawEvent("notify", "CREATE")
	m.RecordFiltered()
	m.RecordBatch("added", 3)
	m.RecordPanic("changed")
	m.SetPending(7)
	m.SetDropped(2)
	m.RecordSourceError()

	// Then: the counters reflect it
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RawEvents.WithLabelValues("notify", "CREATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilteredEvents))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues("added")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BatchPaths.WithLabelValues("added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandlerPanics.WithLabelValues("changed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PendingEntries))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DroppedEvents))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceErrors))
}

func TestMetrics_Handler(t *testing.T) {
	ResetForTesting()
	m := New()
	m.RecordBatch("removed", 1)

	// When: scraping
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// Then: the exposition format carries our series
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vigil_batches_total")
}
