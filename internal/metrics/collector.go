// Package metrics provides internal metrics collection for the workflow
// engine. This package is internal and should not be imported by external
// projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns the engine's prometheus instruments.
type Collector struct {
	workflowExecutionsTotal   *prometheus.CounterVec
	workflowExecutionDuration *prometheus.HistogramVec
	nodeExecutionsTotal       *prometheus.CounterVec
	nodeExecutionDuration     *prometheus.HistogramVec
	lockDenialsTotal          *prometheus.CounterVec
	streamedFragmentsTotal    *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers the engine instruments under the given namespace
// with the provided registerer (use prometheus.DefaultRegisterer in
// production, a fresh registry in tests).
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.workflowExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions",
		},
		[]string{"workflow", "status"},
	)

	c.workflowExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"workflow"},
	)

	c.nodeExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of node executions",
		},
		[]string{"type", "status"},
	)

	c.nodeExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_execution_duration_seconds",
			Help:      "Node execution duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"type"},
	)

	c.lockDenialsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_denials_total",
			Help:      "Total number of workflow lock denials",
		},
		[]string{"lock_id"},
	)

	c.streamedFragmentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streamed_fragments_total",
			Help:      "Total number of fragments streamed to callers",
		},
		[]string{"workflow"},
	)

	return c
}

// RecordWorkflowExecution records one finished workflow execution.
func (c *Collector) RecordWorkflowExecution(workflow, status string, duration time.Duration) {
	c.workflowExecutionsTotal.WithLabelValues(workflow, status).Inc()
	c.workflowExecutionDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// RecordNodeExecution records one finished node execution.
func (c *Collector) RecordNodeExecution(nodeType, status string, duration time.Duration) {
	c.nodeExecutionsTotal.WithLabelValues(nodeType, status).Inc()
	c.nodeExecutionDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordLockDenial records a workflow lock denial.
func (c *Collector) RecordLockDenial(lockID string) {
	c.lockDenialsTotal.WithLabelValues(lockID).Inc()
}

// RecordStreamedFragment records one fragment delivered to a caller.
func (c *Collector) RecordStreamedFragment(workflow string) {
	c.streamedFragmentsTotal.WithLabelValues(workflow).Inc()
}
