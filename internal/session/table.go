package session

// Table is the in-memory session table. It is exclusively owned by the
// session orchestrator and only ever touched from its worker context, so it
// carries no locking of its own.
type Table struct {
	sessions map[string]*Session // session id -> Session
	live     map[string]*Session // imsi -> live (non-terminating) Session

	// generations survives session removal so replacement sessions get a
	// fresh deterministic id.
	generations map[string]uint64
}

// NewTable creates an empty session table.
func NewTable() *Table {
	return &Table{
		sessions:    make(map[string]*Session),
		live:        make(map[string]*Session),
		generations: make(map[string]uint64),
	}
}

// NextGeneration returns the creation counter for the subscriber and bumps it.
func (t *Table) NextGeneration(imsi string) uint64 {
	gen := t.generations[imsi]
	t.generations[imsi]++
	return gen
}

// Add inserts a session. The caller guarantees at most one live session per
// subscriber; a previous live entry for the same IMSI must have been marked
// terminating first.
func (t *Table) Add(s *Session) {
	t.sessions[s.ID] = s
	t.live[s.IMSI] = s
}

// Live returns the live (non-terminating) session for a subscriber, if any.
func (t *Table) Live(imsi string) (*Session, bool) {
	s, ok := t.live[imsi]
	return s, ok
}

// Get returns the session with the given id, terminating or not.
func (t *Table) Get(sessionID string) (*Session, bool) {
	s, ok := t.sessions[sessionID]
	return s, ok
}

// MarkTerminating flags a session as terminating and drops it from the live
// index so a replacement can be created while teardown drains.
func (t *Table) MarkTerminating(s *Session) {
	s.Terminating = true
	if cur, ok := t.live[s.IMSI]; ok && cur.ID == s.ID {
		delete(t.live, s.IMSI)
	}
}

// Remove deletes a session by id, whatever state it is in.
func (t *Table) Remove(sessionID string) {
	s, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	delete(t.sessions, sessionID)
	if cur, ok := t.live[s.IMSI]; ok && cur.ID == sessionID {
		delete(t.live, s.IMSI)
	}
}

// Len returns the number of tracked sessions, terminating ones included.
func (t *Table) Len() int {
	return len(t.sessions)
}
