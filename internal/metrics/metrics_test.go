package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Recorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordUpstream("D", "report", time.Now(), nil)
	m.RecordUpstream("D", "report", time.Now(), errors.New("boom"))
	m.RecordRateLimit("D")
	m.RecordRateLimit("D")
	m.RecordUnit("daily_sync", "R", OutcomeSuccess)
	m.RecordUpsert("daily_sync", "R")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("D", "report", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("D", "report", OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimitHits.WithLabelValues("D")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Units.WithLabelValues("daily_sync", "R", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsUpserted.WithLabelValues("daily_sync", "R")))
}

func TestMetrics_TrackRun(t *testing.T) {
	m := NewNop()

	done := m.TrackRun("reconciliation")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsActive.WithLabelValues("reconciliation")))

	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsActive.WithLabelValues("reconciliation")))
}
