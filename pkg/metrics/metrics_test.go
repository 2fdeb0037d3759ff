package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordAggregation(t *testing.T) {
	c := NewCollector("checkin_test", prometheus.NewRegistry())

	c.RecordAggregation(10, 1, 6, 3, 1)
	c.RecordAggregation(2, 0, 2, 0, 0)

	assert.Equal(t, 12.0, testutil.ToFloat64(c.CheckinsProcessedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CheckinsSkippedTotal))
	assert.Equal(t, 8.0, testutil.ToFloat64(c.MeasuresTotal.WithLabelValues("annotated")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.MeasuresTotal.WithLabelValues("estimated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MeasuresTotal.WithLabelValues("missing")))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// Two collectors with the same namespace must not panic on registration.
	a := NewCollector("checkin_test", prometheus.NewRegistry())
	b := NewCollector("checkin_test", prometheus.NewRegistry())

	a.RecordUpload("success")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ArtifactUploadsTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ArtifactUploadsTotal.WithLabelValues("success")))
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollector("checkin_test", prometheus.NewRegistry())

	timer := c.NewTimer(c.AggregationDuration)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, int64(d), int64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(c.AggregationDuration))
}
