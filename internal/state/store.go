// Package state holds per-user conversation context that survives across
// turns: the document the conversation is anchored to and any outstanding
// clarification question.
package state

import (
	"sync"
	"time"
)

// ConversationState is the per-user context read and mutated by the router.
// ActiveSubjectRef and SubjectSetAt are set and cleared together.
type ConversationState struct {
	UserID               string
	ActiveSubjectRef     string
	SubjectSetAt         time.Time
	PendingClarification string
}

// HasSubject reports whether the conversation is anchored to a document.
func (s ConversationState) HasSubject() bool {
	return s.ActiveSubjectRef != ""
}

// Store is an in-memory conversation state store. States are created lazily
// on first access and never explicitly destroyed; pruning is left to the
// process owner. All mutations for a given user are atomic with respect to
// each other.
type Store struct {
	mu     sync.Mutex
	states map[string]*ConversationState
	now    func() time.Time // for testing
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		states: make(map[string]*ConversationState),
		now:    time.Now,
	}
}

// Get returns a copy of the user's state, creating a default empty state if
// absent. It never fails. Callers receive a snapshot; mutations go through
// the Set/Clear methods.
func (st *Store) Get(userID string) ConversationState {
	st.mu.Lock()
	defer st.mu.Unlock()
	return *st.locked(userID)
}

// SetSubject anchors the conversation to a document and stamps the selection
// time. The two fields change together to keep the snapshot consistent.
func (st *Store) SetSubject(userID, subjectRef string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.locked(userID)
	s.ActiveSubjectRef = subjectRef
	s.SubjectSetAt = st.now()
}

// ClearSubject removes the document anchor and its timestamp.
func (st *Store) ClearSubject(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.locked(userID)
	s.ActiveSubjectRef = ""
	s.SubjectSetAt = time.Time{}
}

// SetPendingClarification records (or clears, with an empty string) the
// clarification question the user has not answered yet.
func (st *Store) SetPendingClarification(userID, question string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.locked(userID).PendingClarification = question
}

// locked returns the live state for userID. Caller must hold st.mu.
func (st *Store) locked(userID string) *ConversationState {
	s, ok := st.states[userID]
	if !ok {
		s = &ConversationState{UserID: userID}
		st.states[userID] = s
	}
	return s
}
