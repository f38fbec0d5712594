// Package dataplane defines the interface to the local enforcement agent
// that installs and removes subscriber flow rules. The agent restarts
// independently of this process; the epoch carried on setup requests and
// echoed back in rule-stat reports is how the orchestrator detects that.
package dataplane

// SetupResult is the agent's verdict on a flow setup request.
type SetupResult int

const (
	SetupSuccess SetupResult = iota
	SetupFailure
	SetupOutdatedEpoch
)

// String returns the result name for logging.
func (r SetupResult) String() string {
	switch r {
	case SetupSuccess:
		return "SUCCESS"
	case SetupFailure:
		return "FAILURE"
	case SetupOutdatedEpoch:
		return "OUTDATED_EPOCH"
	default:
		return "UNKNOWN"
	}
}

// SessionRules names the flow rules installed for one subscriber, used to
// resynchronize the agent after a restart.
type SessionRules struct {
	IMSI    string
	RuleIDs []string
}

// Agent is the asynchronous client for the dataplane enforcement agent.
// SetupFlows callbacks may fire on any goroutine; a non-nil error means the
// request never reached the agent (transport failure) and the result is
// meaningless.
type Agent interface {
	SetupFlows(epoch uint64, rules []SessionRules, done func(SetupResult, error))
	DeactivateFlows(imsi string)
}
