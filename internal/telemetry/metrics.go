// Package telemetry holds the process-wide Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_sessions_created_total",
		Help: "Sessions successfully created.",
	})

	SessionsTerminated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_sessions_terminated_total",
		Help: "Sessions removed from the local session table.",
	})

	UsageReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiond_usage_reports_total",
		Help: "Usage report rounds sent to billing, by outcome.",
	}, []string{"outcome"})

	DataplaneSetups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiond_dataplane_setups_total",
		Help: "Dataplane flow setup attempts, by outcome.",
	}, []string{"outcome"})

	EpochResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_epoch_resyncs_total",
		Help: "Dataplane restarts detected via epoch mismatch.",
	})
)
