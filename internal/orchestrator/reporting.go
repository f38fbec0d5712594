package orchestrator

import (
	"github.com/wolfeidau/sessiond/internal/billing"
	"github.com/wolfeidau/sessiond/internal/telemetry"
)

// checkUsageForReporting runs on the worker goroutine and drains the credit
// engine's pending updates to the billing systems. At most one report call is
// in flight at a time; each successful round immediately triggers another
// until the pending queue is empty, so the queue drains in one burst rather
// than waiting for the next rule-stat report.
func (o *Orchestrator) checkUsageForReporting() {
	if o.reportInFlight {
		return
	}

	snapshot := o.engine.CollectPending()
	if snapshot.Empty() {
		return // nothing to report
	}

	o.logger.Debug().
		Int("charging_updates", len(snapshot.ChargingUpdates)).
		Int("monitor_updates", len(snapshot.MonitorUpdates)).
		Msg("reporting usage updates to billing")

	o.reportInFlight = true
	o.reporter.ReportUsage(snapshot, func(resp *billing.UsageReportResponse, err error) {
		o.dispatch(func() { o.finishUsageReport(snapshot, resp, err) })
	})
}

// finishUsageReport runs on the worker goroutine once the report round has
// completed. A failed round rolls the entire snapshot back into the engine's
// pending state; nothing is retried piecemeal, the next trigger resends the
// full accumulated total.
func (o *Orchestrator) finishUsageReport(snapshot *billing.UsageReportRequest, resp *billing.UsageReportResponse, err error) {
	o.reportInFlight = false

	if err != nil {
		o.engine.Rollback(snapshot)
		telemetry.UsageReports.WithLabelValues("failure").Inc()
		o.logger.Error().Err(err).
			Int("charging_updates", len(snapshot.ChargingUpdates)).
			Msg("usage report failed entirely, rolled back")
		return
	}

	o.engine.Apply(resp)
	telemetry.UsageReports.WithLabelValues("success").Inc()
	// Drain whatever accumulated while the report was in flight.
	o.checkUsageForReporting()
}
