package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.RecordSimulation("layered", 1000, time.Millisecond, nil)
	r.RecordSimulation("layered", 500, time.Millisecond, nil)
	r.RecordSimulation("layered", 10, time.Millisecond, errors.Canceled(nil, "stopped"))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.simulationsTotal.WithLabelValues("layered", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.simulationsTotal.WithLabelValues("layered", "canceled")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(r.simulationTrials.WithLabelValues("layered")))

	r.RecordQuote("DO WW", time.Microsecond, errors.Lookup("missing"))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.quotesTotal.WithLabelValues("DO WW", "lookup")))

	r.RecordCacheLookup("memory", true)
	r.RecordCacheLookup("memory", false)
	r.RecordCacheLookup("memory", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("memory", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("memory", "miss")))

	r.RecordExposureRating(nil)
	r.RecordMessage("pricing.requests", errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.exposureRatings.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messagesTotal.WithLabelValues("pricing.requests", "unknown")))

	r.RecordAPIRequest(http.MethodPost, "/api/v1/pricing/quote", 200, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues("POST", "/api/v1/pricing/quote", "200")))
}

func TestRecordersDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewRecorder(prometheus.NewRegistry())
		NewRecorder(prometheus.NewRegistry())
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.RecordQuote("DO WW", time.Millisecond, nil)

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pricing_quotes_total{class="DO WW",outcome="ok"} 1`)
}
