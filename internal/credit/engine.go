// Package credit defines the local credit engine: the component that owns
// per-session quota bookkeeping and buffers usage between report rounds. The
// arithmetic of rating and overrun policy lives behind this interface, not in
// the orchestrator.
package credit

import (
	"errors"

	"github.com/wolfeidau/sessiond/internal/billing"
	"github.com/wolfeidau/sessiond/internal/dataplane"
	"github.com/wolfeidau/sessiond/internal/session"
)

// Sentinel errors for common error conditions
var (
	ErrUnknownSession = errors.New("unknown session")
	ErrNoGrants       = errors.New("create response carried no grants")
)

// Engine is the narrow interface the orchestrator drives the credit engine
// through. Per-session bookkeeping is exclusively owned by the engine and
// addressed by the session id the orchestrator supplies; the orchestrator
// never inspects credit internals.
type Engine interface {
	// InitSession initializes credit bookkeeping for a newly approved
	// session from the billing create response. Failure rejects the session
	// creation as a whole.
	InitSession(sessionID, imsi string, cfg session.Config, resp *billing.CreateSessionResponse) error

	// Aggregate folds a batch of rule-usage records into the per-session
	// pending buffers.
	Aggregate(records []session.RuleRecord)

	// CollectPending moves all buffered charging and monitor updates into a
	// report request. The returned snapshot is either acknowledged via Apply
	// or restored wholesale via Rollback, never partially.
	CollectPending() *billing.UsageReportRequest

	// Apply folds the acknowledgement of a report round back into the
	// engine's grants.
	Apply(resp *billing.UsageReportResponse)

	// Rollback restores an unacknowledged snapshot into the pending buffers
	// so no usage is lost on report failure.
	Rollback(snapshot *billing.UsageReportRequest)

	// BeginTermination stops credit being extended to the session; its usage
	// is still aggregated while the dataplane drains.
	BeginTermination(sessionID string) error

	// CollectTermination gathers the session's final usage into a
	// termination report and releases its bookkeeping.
	CollectTermination(sessionID string) (*billing.TerminationRequest, error)

	// IsDuplicateSubscriber reports whether a non-terminating session exists
	// for the subscriber.
	IsDuplicateSubscriber(imsi string) bool

	// IsDuplicateSession reports whether a non-terminating session exists
	// for the subscriber with an identical config.
	IsDuplicateSession(imsi string, cfg session.Config) bool

	// ActiveRules returns the flow rules currently tracked per subscriber,
	// used to resynchronize the dataplane agent after a restart.
	ActiveRules() []dataplane.SessionRules
}
