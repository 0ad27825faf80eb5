package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("loom", reg, nil)

	c.RecordWorkflowExecution("assistant", "success", 120*time.Millisecond)
	c.RecordWorkflowExecution("assistant", "success", 80*time.Millisecond)
	c.RecordWorkflowExecution("assistant", "error", time.Second)
	c.RecordNodeExecution("Standard", "success", 50*time.Millisecond)
	c.RecordLockDenial("bg-task")
	c.RecordStreamedFragment("assistant")

	assert.Equal(t, float64(2), testutil.ToFloat64(
		c.workflowExecutionsTotal.WithLabelValues("assistant", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.workflowExecutionsTotal.WithLabelValues("assistant", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.nodeExecutionsTotal.WithLabelValues("Standard", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.lockDenialsTotal.WithLabelValues("bg-task")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.streamedFragmentsTotal.WithLabelValues("assistant")))
}
