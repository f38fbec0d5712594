package credit

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sessiond/internal/billing"
	"github.com/wolfeidau/sessiond/internal/dataplane"
	"github.com/wolfeidau/sessiond/internal/session"
)

// pendingUsage is the unreported byte delta for one rule.
type pendingUsage struct {
	bytesTx uint64
	bytesRx uint64
}

func (u *pendingUsage) empty() bool {
	return u.bytesTx == 0 && u.bytesRx == 0
}

// sessionState is the engine's bookkeeping for one session.
type sessionState struct {
	id          string
	imsi        string
	cfg         session.Config
	terminating bool

	// grants: charging key -> remaining granted bytes
	grants map[uint32]uint64
	// monitors: monitoring key -> remaining granted bytes
	monitors map[string]uint64
	// chargingKey charged for rule usage, taken from the first grant
	chargingKey uint32

	// pending: rule id -> unreported usage
	pending map[string]*pendingUsage
	// rules ever observed for the session, reported on dataplane resync
	rules map[string]struct{}
}

// MemoryEngine implements Engine with in-memory bookkeeping.
type MemoryEngine struct {
	mu sync.Mutex

	sessions map[string]*sessionState // session id -> state
	byIMSI   map[string][]string      // imsi -> session ids
}

// NewMemoryEngine creates an empty in-memory credit engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		sessions: make(map[string]*sessionState),
		byIMSI:   make(map[string][]string),
	}
}

func (e *MemoryEngine) InitSession(sessionID, imsi string, cfg session.Config, resp *billing.CreateSessionResponse) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if resp == nil || len(resp.Credits) == 0 {
		return fmt.Errorf("%w: session %s", ErrNoGrants, sessionID)
	}

	st := &sessionState{
		id:       sessionID,
		imsi:     imsi,
		cfg:      cfg,
		grants:   make(map[uint32]uint64, len(resp.Credits)),
		monitors: make(map[string]uint64, len(resp.Monitors)),
		pending:  make(map[string]*pendingUsage),
		rules:    make(map[string]struct{}),
	}
	for i, grant := range resp.Credits {
		st.grants[grant.ChargingKey] = grant.GrantedBytes
		if i == 0 {
			st.chargingKey = grant.ChargingKey
		}
	}
	for _, grant := range resp.Monitors {
		st.monitors[grant.MonitoringKey] = grant.GrantedBytes
	}

	e.sessions[sessionID] = st
	e.byIMSI[imsi] = append(e.byIMSI[imsi], sessionID)

	log.Debug().Str("session_id", sessionID).Str("imsi", imsi).
		Int("credit_grants", len(resp.Credits)).Int("monitor_grants", len(resp.Monitors)).
		Msg("Initialized session credit")
	return nil
}

func (e *MemoryEngine) Aggregate(records []session.RuleRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rec := range records {
		// Usage keeps accruing to a terminating session while its flows
		// drain, so fall back to a terminating one when no live session
		// matches.
		st := e.lookupByIMSI(rec.IMSI)
		if st == nil {
			st = e.lookupTerminatingByIMSI(rec.IMSI)
		}
		if st == nil {
			log.Debug().Str("imsi", rec.IMSI).Str("rule_id", rec.RuleID).
				Msg("Dropping record for untracked subscriber")
			continue
		}
		usage, ok := st.pending[rec.RuleID]
		if !ok {
			usage = &pendingUsage{}
			st.pending[rec.RuleID] = usage
		}
		usage.bytesTx += rec.BytesTx
		usage.bytesRx += rec.BytesRx
		st.rules[rec.RuleID] = struct{}{}
	}
}

func (e *MemoryEngine) CollectPending() *billing.UsageReportRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	req := &billing.UsageReportRequest{}
	for _, st := range e.sessions {
		if st.terminating {
			// Usage accrued during teardown goes out with the termination
			// request instead.
			continue
		}
		for ruleID, usage := range st.pending {
			if usage.empty() {
				continue
			}
			req.ChargingUpdates = append(req.ChargingUpdates, billing.ChargingUpdate{
				SessionID:   st.id,
				IMSI:        st.imsi,
				RuleID:      ruleID,
				BytesTx:     usage.bytesTx,
				BytesRx:     usage.bytesRx,
				ChargingKey: st.chargingKey,
			})
			for key := range st.monitors {
				req.MonitorUpdates = append(req.MonitorUpdates, billing.MonitorUpdate{
					SessionID:     st.id,
					IMSI:          st.imsi,
					MonitoringKey: key,
					BytesTx:       usage.bytesTx,
					BytesRx:       usage.bytesRx,
				})
			}
			delete(st.pending, ruleID)
		}
	}
	return req
}

func (e *MemoryEngine) Apply(resp *billing.UsageReportResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if resp == nil {
		return
	}
	// Refreshed grants replace the remaining allowance for their key across
	// every session holding that key.
	for _, st := range e.sessions {
		for _, grant := range resp.Credits {
			if _, ok := st.grants[grant.ChargingKey]; ok {
				st.grants[grant.ChargingKey] = grant.GrantedBytes
			}
		}
		for _, grant := range resp.Monitors {
			if _, ok := st.monitors[grant.MonitoringKey]; ok {
				st.monitors[grant.MonitoringKey] = grant.GrantedBytes
			}
		}
	}
}

func (e *MemoryEngine) Rollback(snapshot *billing.UsageReportRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if snapshot == nil {
		return
	}
	for _, update := range snapshot.ChargingUpdates {
		st, ok := e.sessions[update.SessionID]
		if !ok {
			// Session torn down while the report was in flight; its final
			// usage went out with the termination request.
			continue
		}
		usage, ok := st.pending[update.RuleID]
		if !ok {
			usage = &pendingUsage{}
			st.pending[update.RuleID] = usage
		}
		usage.bytesTx += update.BytesTx
		usage.bytesRx += update.BytesRx
	}
}

func (e *MemoryEngine) BeginTermination(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	st.terminating = true
	return nil
}

func (e *MemoryEngine) CollectTermination(sessionID string) (*billing.TerminationRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	req := &billing.TerminationRequest{
		SessionID: st.id,
		IMSI:      st.imsi,
	}
	ruleIDs := make([]string, 0, len(st.pending))
	for ruleID := range st.pending {
		ruleIDs = append(ruleIDs, ruleID)
	}
	sort.Strings(ruleIDs)
	for _, ruleID := range ruleIDs {
		usage := st.pending[ruleID]
		if usage.empty() {
			continue
		}
		req.FinalUsage = append(req.FinalUsage, billing.ChargingUpdate{
			SessionID:   st.id,
			IMSI:        st.imsi,
			RuleID:      ruleID,
			BytesTx:     usage.bytesTx,
			BytesRx:     usage.bytesRx,
			ChargingKey: st.chargingKey,
		})
	}

	delete(e.sessions, sessionID)
	e.removeFromIMSIIndex(st.imsi, sessionID)

	return req, nil
}

func (e *MemoryEngine) IsDuplicateSubscriber(imsi string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookupByIMSI(imsi) != nil
}

func (e *MemoryEngine) IsDuplicateSession(imsi string, cfg session.Config) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.lookupByIMSI(imsi)
	return st != nil && st.cfg.Equal(cfg)
}

func (e *MemoryEngine) ActiveRules() []dataplane.SessionRules {
	e.mu.Lock()
	defer e.mu.Unlock()

	imsis := make([]string, 0, len(e.byIMSI))
	for imsi := range e.byIMSI {
		imsis = append(imsis, imsi)
	}
	sort.Strings(imsis)

	var all []dataplane.SessionRules
	for _, imsi := range imsis {
		for _, id := range e.byIMSI[imsi] {
			st := e.sessions[id]
			if st == nil || st.terminating {
				continue
			}
			rules := dataplane.SessionRules{IMSI: imsi}
			for ruleID := range st.rules {
				rules.RuleIDs = append(rules.RuleIDs, ruleID)
			}
			sort.Strings(rules.RuleIDs)
			all = append(all, rules)
		}
	}
	return all
}

// lookupByIMSI returns the non-terminating session state for a subscriber.
// Caller must hold the lock.
func (e *MemoryEngine) lookupByIMSI(imsi string) *sessionState {
	for _, id := range e.byIMSI[imsi] {
		if st := e.sessions[id]; st != nil && !st.terminating {
			return st
		}
	}
	return nil
}

// lookupTerminatingByIMSI returns a terminating session state for a
// subscriber. Caller must hold the lock.
func (e *MemoryEngine) lookupTerminatingByIMSI(imsi string) *sessionState {
	for _, id := range e.byIMSI[imsi] {
		if st := e.sessions[id]; st != nil && st.terminating {
			return st
		}
	}
	return nil
}

// removeFromIMSIIndex drops a session id from the subscriber's session list.
// Caller must hold the lock.
func (e *MemoryEngine) removeFromIMSIIndex(imsi, sessionID string) {
	ids := e.byIMSI[imsi]
	for i, id := range ids {
		if id == sessionID {
			e.byIMSI[imsi] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(e.byIMSI[imsi]) == 0 {
		delete(e.byIMSI, imsi)
	}
}
