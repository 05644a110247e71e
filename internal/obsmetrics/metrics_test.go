package obsmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTaskCompletedUpdatesCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TaskSubmitted()
	m.TaskCompleted(25*time.Millisecond, false)
	m.TaskCompleted(10*time.Millisecond, true)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasksSubmitted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasksCompleted.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasksCompleted.WithLabelValues("error")))
}

func TestGaugesReflectLatestObservation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveResultPoolSize(3)
	m.ObserveAgentCount(7)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.resultPoolSize))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.registeredAgents))
}
