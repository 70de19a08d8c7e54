// Package session keeps per-session conversation transcripts in memory.
// Sessions live for the process lifetime unless cleared; clearing removes
// the entry entirely, so a later access starts an empty session rather
// than restoring the old one.
package session

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/travel-rag/backend/pkg/logger"
)

const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a transcript. Turns are never mutated after
// creation.
type Turn struct {
	Role    string
	Content string
}

// Session is an isolated ordered transcript. The answer lock serializes
// whole answer calls for one session id so two concurrent answers cannot
// interleave their history appends.
type Session struct {
	id string

	mu    sync.Mutex
	turns []Turn

	answerMu sync.Mutex
}

func (s *Session) ID() string {
	return s.id
}

// History returns a copy of the transcript in strict append order.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Turn, len(s.turns))
	copy(snapshot, s.turns)
	return snapshot
}

// AppendExchange adds a human turn and its paired assistant turn in one
// step, so a question can never be recorded without its answer.
func (s *Session) AppendExchange(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns,
		Turn{Role: RoleHuman, Content: question},
		Turn{Role: RoleAssistant, Content: answer},
	)
}

// AcquireAnswer blocks until this session's answer lock is free.
func (s *Session) AcquireAnswer() {
	s.answerMu.Lock()
}

func (s *Session) ReleaseAnswer() {
	s.answerMu.Unlock()
}

// Store is the process-wide session registry. Construct one at startup
// and inject it; it is not a package-level singleton so tests and
// multi-tenant deployments get isolated stores.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for id, creating an empty one on first
// access. Idempotent: repeated calls with the same id return the same
// session.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return sess
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if sess, ok := st.sessions[id]; ok {
		return sess
	}

	sess = &Session{id: id}
	st.sessions[id] = sess

	logger.Debug("Session created", zap.String("session_id", id))
	return sess
}

// Clear removes the session if present and reports whether it existed.
// Clearing an absent session is a logged no-op, not an error.
func (st *Store) Clear(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		logger.Warn("Session not found, nothing to clear", zap.String("session_id", id))
		return false
	}

	delete(st.sessions, id)
	logger.Info("Session cleared", zap.String("session_id", id))
	return true
}

// ListIDs returns all active session ids, sorted for stable output.
func (st *Store) ListIDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (st *Store) ClearAll() {
	st.mu.Lock()
	defer st.mu.Unlock()

	count := len(st.sessions)
	st.sessions = make(map[string]*Session)

	logger.Info("All sessions cleared", zap.Int("count", count))
}
