// Package kvsmetrics exposes Prometheus collectors for KVS operations,
// following the `<namespace>_<noun>_total{labels...}` convention
// cmd/kubectl-tns-csi's metrics_test.go parses back out of a running
// process: one counter and one duration histogram per operation, labeled
// by instance id and operation name.
package kvsmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qorix-group/kvs/pkg/kvsbackend"
)

const namespace = "kvs"

var (
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total KVS backend operations, labeled by instance, operation and outcome.",
	}, []string{"instance_id", "operation", "status"})

	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of KVS backend operations, labeled by instance and operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"instance_id", "operation"})

	registerOnce sync.Once
)

// Register adds the KVS collectors to reg. Safe to call multiple times and
// from multiple goroutines, but only the first call registers anything:
// later calls are no-ops, whatever reg they pass. NewOperationTimer calls
// Register with the process's default registry, so a Register call made
// after any operation has been timed does not add the collectors to reg.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(operationsTotal, operationDuration)
	})
}

// Operation names used as the "operation" label across Flush/load/rotate
// calls.
const (
	OpFlush        = "flush"
	OpLoadSnapshot = "load_snapshot"
	OpLoadDefaults = "load_defaults"
	OpRestore      = "restore"
	OpRotate       = "rotate"
)

// OperationTimer times a single backend operation and reports its outcome
// via ObserveSuccess/ObserveError, the same shape as a per-volume-operation
// timer would take for a storage driver.
type OperationTimer struct {
	instanceID string
	operation  string
	start      time.Time
}

// NewOperationTimer starts timing operation against instanceID, registering
// the KVS collectors against the default registry on first use if the
// embedding application never called Register itself.
func NewOperationTimer(instanceID kvsbackend.InstanceID, operation string) *OperationTimer {
	Register(prometheus.DefaultRegisterer)
	return &OperationTimer{
		instanceID: strconv.Itoa(int(instanceID)),
		operation:  operation,
		start:      time.Now(),
	}
}

// ObserveSuccess records the elapsed duration and a "success" outcome.
func (t *OperationTimer) ObserveSuccess() {
	t.observe("success")
}

// ObserveError records the elapsed duration and an "error" outcome.
func (t *OperationTimer) ObserveError() {
	t.observe("error")
}

func (t *OperationTimer) observe(status string) {
	operationDuration.WithLabelValues(t.instanceID, t.operation).Observe(time.Since(t.start).Seconds())
	operationsTotal.WithLabelValues(t.instanceID, t.operation, status).Inc()
}
