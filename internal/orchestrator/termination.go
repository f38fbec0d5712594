package orchestrator

import (
	"github.com/wolfeidau/sessiond/internal/clock"
	"github.com/wolfeidau/sessiond/internal/session"
	"github.com/wolfeidau/sessiond/internal/telemetry"
)

// drainState tracks phase 2 of the termination protocol for one session:
// usage keeps accruing until the session's flows disappear from dataplane
// reports or the drain timeout elapses.
type drainState struct {
	session *session.Session
	timer   clock.Timer
	done    bool
}

// beginTermination runs on the worker goroutine and drives the four-phase
// teardown:
//
//  1. initiate: flow removal request to the dataplane agent
//  2. drain: keep aggregating usage until the flows vanish from reports or
//     the drain timeout elapses
//  3. report: send the final usage to billing, fire-and-forget
//  4. remove: delete the session locally no matter what step 3 did
//
// It is idempotent for an already-terminating session.
func (o *Orchestrator) beginTermination(s *session.Session) {
	if s.Terminating {
		return
	}

	o.table.MarkTerminating(s)
	o.cancelIdleTimer(s.ID)
	if err := o.engine.BeginTermination(s.ID); err != nil {
		o.logger.Warn().Err(err).Str("session_id", s.ID).
			Msg("credit engine had no bookkeeping for terminating session")
	}
	o.agent.DeactivateFlows(s.IMSI)

	ds := &drainState{session: s}
	ds.timer = o.clk.AfterFunc(o.opts.DrainTimeout, func() {
		o.dispatch(func() { o.finishDrain(ds, "timeout") })
	})
	o.draining[s.ID] = ds

	o.logger.Info().Str("imsi", s.IMSI).Str("session_id", s.ID).
		Msg("terminating session, draining final usage")
}

// observeDrainProgress runs on the worker goroutine for every rule-stat
// report. A draining session whose subscriber no longer appears in the report
// has had its flows removed, so its drain completes early.
func (o *Orchestrator) observeDrainProgress(records []session.RuleRecord) {
	if len(o.draining) == 0 {
		return
	}
	reported := make(map[string]struct{}, len(records))
	for _, rec := range records {
		reported[rec.IMSI] = struct{}{}
	}
	for _, ds := range o.draining {
		if _, ok := reported[ds.session.IMSI]; !ok {
			o.finishDrain(ds, "flows removed")
		}
	}
}

// finishDrain runs on the worker goroutine and completes phases 3 and 4. The
// termination report's outcome is logged but never blocks or reverses local
// removal.
func (o *Orchestrator) finishDrain(ds *drainState, reason string) {
	if ds.done {
		return
	}
	ds.done = true
	ds.timer.Stop()
	delete(o.draining, ds.session.ID)

	sid := ds.session.ID
	imsi := ds.session.IMSI
	o.logger.Debug().Str("session_id", sid).Str("reason", reason).Msg("session drain complete")

	termReq, err := o.engine.CollectTermination(sid)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", sid).
			Msg("no final usage to report for terminated session")
	} else {
		o.reporter.ReportTermination(termReq, func(err error) {
			if err != nil {
				o.logger.Error().Err(err).Str("imsi", imsi).Str("session_id", sid).
					Msg("failed to report session termination to billing")
				return
			}
			o.logger.Debug().Str("imsi", imsi).Str("session_id", sid).
				Msg("session termination reported to billing")
		})
	}

	o.table.Remove(sid)
	telemetry.SessionsTerminated.Inc()
}
