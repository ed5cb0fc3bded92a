// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mfkdf.
//
// go-mfkdf is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics exposes Prometheus instrumentation for key setup,
// derivation and reconstitution. The engine records through the Recorder
// interface so applications that do not scrape metrics can plug in NoOp.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all mfkdf metrics
	Namespace = "mfkdf"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelErrorType = "error_type"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSetup         = "setup"
	OpDerive        = "derive"
	OpReconstitute  = "reconstitute"
	OpSetThreshold  = "set_threshold"
	OpAddFactors    = "add_factors"
	OpRemoveFactors = "remove_factors"
	OpRecoverFactor = "recover_factors"
	OpAddHint       = "add_hint"
)

var (
	// OperationsTotal counts engine operations by type and status
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of key operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks operation latency. Buckets cover HKDF-only
	// policies through memory-hard KDF settings.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of key operations in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelOperation},
	)

	// ErrorsTotal counts failures by operation and error class
	// (e.g. "insufficient_factors", "integrity").
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// FactorsTotal counts factor slots processed by each operation
	FactorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "factors_total",
			Help:      "Total number of factors processed by operation",
		},
		[]string{LabelOperation},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// Enable turns on metric collection
func Enable() {
	enabled.Store(true)
}

// Disable turns off metric collection
func Disable() {
	enabled.Store(false)
}

// IsEnabled reports whether metrics are being recorded
func IsEnabled() bool {
	return enabled.Load()
}

// Recorder receives engine instrumentation events
type Recorder interface {
	// RecordOperation records one completed operation. errType is empty on
	// success.
	RecordOperation(operation string, duration time.Duration, errType string)

	// RecordFactors records the number of factors an operation processed
	RecordFactors(operation string, count int)
}

// Prometheus records into the package-level collectors
type Prometheus struct{}

// NewPrometheus returns a Recorder backed by the default Prometheus registry
func NewPrometheus() *Prometheus {
	return &Prometheus{}
}

func (Prometheus) RecordOperation(operation string, duration time.Duration, errType string) {
	if !enabled.Load() {
		return
	}
	status := StatusSuccess
	if errType != "" {
		status = StatusError
		ErrorsTotal.WithLabelValues(operation, errType).Inc()
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (Prometheus) RecordFactors(operation string, count int) {
	if !enabled.Load() || count <= 0 {
		return
	}
	FactorsTotal.WithLabelValues(operation).Add(float64(count))
}

// NoOp discards all events
type NoOp struct{}

// NewNoOp returns a Recorder that does nothing
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (NoOp) RecordOperation(string, time.Duration, string) {}

func (NoOp) RecordFactors(string, int) {}
