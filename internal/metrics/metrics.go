// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Options configure the metrics endpoint.
type Options struct {
	// Address is the listen address of the metrics endpoint. Empty disables it.
	Address string `mapstructure:"address"`
}

// Metrics provides observability for the exchange engine. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Crypto operations by operation (protect, unprotect) and outcome
	CryptoOperations *prometheus.CounterVec

	// Transport operations by transport, operation and outcome
	TransportOperations *prometheus.CounterVec

	// Transport latency by transport and operation
	TransportLatency *prometheus.HistogramVec

	// Audit records, that a sink failed to append, by sink
	AuditSinkFailures *prometheus.CounterVec
}

// NewRegistry creates a registry with the default process and go collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return registry
}

// New creates all metrics and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CryptoOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefdirect_crypto_operations_total",
			Help: "Total protect and unprotect operations by outcome",
		}, []string{"operation", "outcome"}),

		TransportOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefdirect_transport_operations_total",
			Help: "Total transport operations by transport, operation and outcome",
		}, []string{"transport", "operation", "outcome"}),

		TransportLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "briefdirect_transport_duration_seconds",
			Help:    "Duration of transport operations including connect and authentication",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"transport", "operation"}),

		AuditSinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefdirect_audit_sink_failures_total",
			Help: "Total audit events a sink failed to append",
		}, []string{"sink"}),
	}
}

// IncrementCrypto records the outcome of a crypto operation.
func (m *Metrics) IncrementCrypto(operation, outcome string) {
	if m != nil {
		m.CryptoOperations.WithLabelValues(operation, outcome).Inc()
	}
}

// ObserveTransport records the outcome and duration of a transport operation.
func (m *Metrics) ObserveTransport(transport, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	m.TransportOperations.WithLabelValues(transport, operation, outcome).Inc()
	m.TransportLatency.WithLabelValues(transport, operation).Observe(d.Seconds())
}

// IncrementAuditSinkFailure records an audit event lost by a sink.
func (m *Metrics) IncrementAuditSinkFailure(sink string) {
	if m != nil {
		m.AuditSinkFailures.WithLabelValues(sink).Inc()
	}
}
