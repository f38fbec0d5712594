package orchestrator

import (
	"github.com/wolfeidau/sessiond/internal/dataplane"
	"github.com/wolfeidau/sessiond/internal/telemetry"
)

// needsResync reports whether the dataplane's installed rule-set generation
// is unknown or stale. An epoch of zero means the agent is waiting for setup
// instructions, so it always forces a resync.
func (o *Orchestrator) needsResync() bool {
	return o.currentEpoch == 0 || o.currentEpoch != o.reportedEpoch
}

// setupDataplane runs on the worker goroutine and issues an asynchronous
// rule-installation request for the given epoch.
func (o *Orchestrator) setupDataplane(epoch uint64) {
	rules := o.engine.ActiveRules()
	o.agent.SetupFlows(epoch, rules, func(result dataplane.SetupResult, err error) {
		o.dispatch(func() { o.handleSetupResult(epoch, result, err) })
	})
}

// handleSetupResult runs on the worker goroutine. Transport failures and
// FAILURE results reschedule the identical setup call after a fixed delay;
// dataplane unavailability is expected to be transient and is never fatal.
func (o *Orchestrator) handleSetupResult(epoch uint64, result dataplane.SetupResult, err error) {
	if err != nil {
		o.logger.Error().Err(err).Uint64("epoch", epoch).
			Msg("could not reach dataplane agent for setup, retrying")
		telemetry.DataplaneSetups.WithLabelValues("transport_error").Inc()
		o.scheduleSetupRetry(epoch)
		return
	}

	switch result {
	case dataplane.SetupOutdatedEpoch:
		// A setup for a later epoch is already in flight or completed.
		o.logger.Warn().Uint64("epoch", epoch).Msg("dataplane setup has outdated epoch, abandoning")
		telemetry.DataplaneSetups.WithLabelValues("outdated_epoch").Inc()
	case dataplane.SetupFailure:
		o.logger.Warn().Uint64("epoch", epoch).Msg("dataplane setup failed, retrying")
		telemetry.DataplaneSetups.WithLabelValues("failure").Inc()
		o.scheduleSetupRetry(epoch)
	default:
		o.logger.Debug().Uint64("epoch", epoch).Msg("dataplane setup succeeded")
		telemetry.DataplaneSetups.WithLabelValues("success").Inc()
	}
}

// scheduleSetupRetry runs on the worker goroutine. Retries carry on
// indefinitely until setup succeeds or the epoch becomes outdated.
func (o *Orchestrator) scheduleSetupRetry(epoch uint64) {
	if epoch != o.currentEpoch {
		o.logger.Debug().Uint64("epoch", epoch).Uint64("current_epoch", o.currentEpoch).
			Msg("abandoning setup retry for stale epoch")
		return
	}
	o.clk.AfterFunc(o.setupRetry.NextBackOff(), func() {
		o.dispatch(func() {
			if epoch != o.currentEpoch {
				return
			}
			o.setupDataplane(epoch)
		})
	})
}
