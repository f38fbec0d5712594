// Package orchestrator implements the session lifecycle orchestrator: it
// creates, tracks, synchronizes and tears down subscriber data sessions
// across the dataplane agent, the local credit engine and the remote billing
// systems.
//
// All session table mutations and collaborator calls run on a single worker
// goroutine. Public operations and collaborator completions are marshaled
// onto that goroutine through an unbounded mailbox, so no shared state is
// ever touched concurrently.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/sessiond/internal/billing"
	"github.com/wolfeidau/sessiond/internal/clock"
	"github.com/wolfeidau/sessiond/internal/credit"
	"github.com/wolfeidau/sessiond/internal/dataplane"
	"github.com/wolfeidau/sessiond/internal/session"
	"github.com/wolfeidau/sessiond/internal/telemetry"
)

// Sentinel errors for common error conditions
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrBillingUnavailable = errors.New("billing systems unreachable")
	ErrCreditInitFailed   = errors.New("failed to initialize session credit")
	ErrStopped            = errors.New("orchestrator stopped")
)

// CreateOutcome distinguishes a fresh session from an idempotent duplicate.
type CreateOutcome int

const (
	// Created means a new session was approved by billing and added to the
	// session table.
	Created CreateOutcome = iota
	// AlreadyExists means an identical live session was found; no new
	// session was created and billing was not contacted.
	AlreadyExists
)

// Options tunes orchestrator timers. Zero values fall back to defaults.
type Options struct {
	// IdleTimeout ends a session that has reported no usage for this long.
	IdleTimeout time.Duration
	// DrainTimeout bounds the wait for a terminating session's flows to
	// disappear from dataplane reports.
	DrainTimeout time.Duration
	// SetupRetryInterval is the fixed delay between dataplane setup retries.
	SetupRetryInterval time.Duration
	// Clock overrides the wall clock, for tests.
	Clock clock.Clock
}

func (o *Options) applyDefaults() {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = time.Hour
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 5 * time.Second
	}
	if o.SetupRetryInterval <= 0 {
		o.SetupRetryInterval = time.Second
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
}

// Orchestrator is the public entry point for session lifecycle events.
type Orchestrator struct {
	engine   credit.Engine
	agent    dataplane.Agent
	reporter billing.Reporter
	clk      clock.Clock
	logger   zerolog.Logger
	opts     Options

	mbox *mailbox
	done chan struct{}

	// Everything below is owned by the worker goroutine.
	table          *session.Table
	currentEpoch   uint64
	reportedEpoch  uint64
	setupRetry     *backoff.ConstantBackOff
	reportInFlight bool
	draining       map[string]*drainState // session id -> drain
	idleTimers     map[string]clock.Timer // session id -> timer
}

// New creates an orchestrator. Call Start before using it.
func New(engine credit.Engine, agent dataplane.Agent, reporter billing.Reporter, logger zerolog.Logger, opts Options) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{
		engine:     engine,
		agent:      agent,
		reporter:   reporter,
		clk:        opts.Clock,
		logger:     logger,
		opts:       opts,
		mbox:       newMailbox(),
		done:       make(chan struct{}),
		table:      session.NewTable(),
		setupRetry: backoff.NewConstantBackOff(opts.SetupRetryInterval),
		draining:   make(map[string]*drainState),
		idleTimers: make(map[string]clock.Timer),
	}
}

// Start launches the worker goroutine.
func (o *Orchestrator) Start() error {
	go o.run()
	return nil
}

// Stop drains queued events and stops the worker. Public operations called
// afterwards fail with ErrStopped.
func (o *Orchestrator) Stop() error {
	o.mbox.close()
	<-o.done
	return nil
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		event, ok := o.mbox.get()
		if !ok {
			return
		}
		event()
	}
}

// dispatch queues an event for the worker goroutine.
func (o *Orchestrator) dispatch(f func()) bool {
	return o.mbox.put(f)
}

// barrier waits until every event queued before it has run.
func (o *Orchestrator) barrier() {
	processed := make(chan struct{})
	if o.dispatch(func() { close(processed) }) {
		<-processed
	}
}

// ReportRuleStats ingests a batch of per-flow usage records along with the
// dataplane's self-reported epoch. It acknowledges receipt immediately; all
// state mutation happens on the worker goroutine.
func (o *Orchestrator) ReportRuleStats(records []session.RuleRecord, epoch uint64) {
	o.dispatch(func() {
		o.logger.Debug().Int("records", len(records)).Uint64("epoch", epoch).Msg("aggregating rule records")
		o.engine.Aggregate(records)
		o.observeDrainProgress(records)
		o.touchIdleTimers(records)

		o.reportedEpoch = epoch
		if o.needsResync() {
			o.logger.Info().Uint64("epoch", epoch).Msg("dataplane restarted, resyncing flows")
			// Advance the current epoch before the setup call goes out so
			// the next report does not trigger a duplicate setup.
			o.currentEpoch = o.reportedEpoch
			telemetry.EpochResyncs.Inc()
			o.setupDataplane(o.currentEpoch)
		}

		o.checkUsageForReporting()
	})
}

// CreateSession creates a data session for the subscriber. An identical live
// session makes this a no-op duplicate; a conflicting one is terminated and
// replaced. The new session only exists once billing has approved it and the
// credit engine has initialized its bookkeeping.
func (o *Orchestrator) CreateSession(ctx context.Context, imsi string, cfg session.Config) (CreateOutcome, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	imsi = session.NormalizeIMSI(imsi)

	type createResult struct {
		outcome CreateOutcome
		err     error
	}
	result := make(chan createResult, 1)
	respond := func(outcome CreateOutcome, err error) {
		result <- createResult{outcome: outcome, err: err}
	}

	queued := o.dispatch(func() {
		o.createSession(imsi, cfg, respond)
	})
	if !queued {
		return 0, ErrStopped
	}

	select {
	case r := <-result:
		return r.outcome, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// createSession runs on the worker goroutine.
func (o *Orchestrator) createSession(imsi string, cfg session.Config, respond func(CreateOutcome, error)) {
	if o.engine.IsDuplicateSubscriber(imsi) {
		if o.engine.IsDuplicateSession(imsi, cfg) {
			o.logger.Info().Str("imsi", imsi).Msg("identical session already exists, not creating")
			respond(AlreadyExists, nil)
			return
		}
		if old, ok := o.table.Live(imsi); ok {
			o.logger.Info().Str("imsi", imsi).Str("session_id", old.ID).
				Msg("conflicting session for subscriber, terminating the old session")
			o.beginTermination(old)
		}
	}

	sid := session.GenerateID(imsi, o.table.NextGeneration(imsi))
	req := billing.NewCreateSessionRequest(sid, imsi, cfg)

	o.reporter.CreateSession(req, func(resp *billing.CreateSessionResponse, err error) {
		o.dispatch(func() {
			o.finishCreateSession(sid, imsi, cfg, resp, err, respond)
		})
	})
}

// finishCreateSession runs on the worker goroutine once billing has answered.
func (o *Orchestrator) finishCreateSession(sid, imsi string, cfg session.Config, resp *billing.CreateSessionResponse, err error, respond func(CreateOutcome, error)) {
	if err != nil {
		o.logger.Error().Err(err).Str("imsi", imsi).Msg("billing rejected session create")
		respond(0, fmt.Errorf("%w: %w", ErrBillingUnavailable, err))
		return
	}
	if err := o.engine.InitSession(sid, imsi, cfg, resp); err != nil {
		o.logger.Error().Err(err).Str("imsi", imsi).Str("session_id", sid).
			Msg("failed to initialize session credit")
		respond(0, fmt.Errorf("%w: %w", ErrCreditInitFailed, err))
		return
	}

	s := &session.Session{ID: sid, IMSI: imsi, Config: cfg}
	o.table.Add(s)
	o.armIdleTimer(s)
	telemetry.SessionsCreated.Inc()
	o.logger.Info().Str("imsi", imsi).Str("session_id", sid).Msg("session created")
	respond(Created, nil)
}

// EndSession starts the termination protocol for the subscriber's live
// session. It returns ErrSessionNotFound when no live session exists, in
// which case no collaborator calls are made.
func (o *Orchestrator) EndSession(ctx context.Context, imsi string) error {
	imsi = session.NormalizeIMSI(imsi)

	result := make(chan error, 1)
	queued := o.dispatch(func() {
		s, ok := o.table.Live(imsi)
		if !ok {
			result <- fmt.Errorf("%w: subscriber %s", ErrSessionNotFound, imsi)
			return
		}
		o.beginTermination(s)
		result <- nil
	})
	if !queued {
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// armIdleTimer runs on the worker goroutine.
func (o *Orchestrator) armIdleTimer(s *session.Session) {
	sid := s.ID
	o.idleTimers[sid] = o.clk.AfterFunc(o.opts.IdleTimeout, func() {
		o.dispatch(func() { o.idleTimeout(sid) })
	})
}

// idleTimeout runs on the worker goroutine when a session has been idle for
// the configured timeout. It is an implicit, best-effort EndSession.
func (o *Orchestrator) idleTimeout(sid string) {
	s, ok := o.table.Get(sid)
	if !ok || s.Terminating {
		return
	}
	o.logger.Info().Str("imsi", s.IMSI).Str("session_id", sid).Msg("session idle timeout, terminating")
	o.beginTermination(s)
}

// touchIdleTimers runs on the worker goroutine and rearms the idle timer for
// every live session the records carry usage for.
func (o *Orchestrator) touchIdleTimers(records []session.RuleRecord) {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.IMSI]; ok {
			continue
		}
		seen[rec.IMSI] = struct{}{}
		s, ok := o.table.Live(rec.IMSI)
		if !ok {
			continue
		}
		if t, ok := o.idleTimers[s.ID]; ok {
			t.Stop()
		}
		o.armIdleTimer(s)
	}
}

// cancelIdleTimer runs on the worker goroutine.
func (o *Orchestrator) cancelIdleTimer(sid string) {
	if t, ok := o.idleTimers[sid]; ok {
		t.Stop()
		delete(o.idleTimers, sid)
	}
}
