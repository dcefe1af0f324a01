package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"momentumwatch/internal/model"
)

// SeenSet remembers symbols alerted this session. Membership suppresses
// re-alerting until Clear.
type SeenSet struct {
	id uuid.UUID

	mu      sync.RWMutex
	entries map[string]model.SeenEntry
}

// NewSeenSet creates an empty seen-set with a fresh session id.
func NewSeenSet() *SeenSet {
	return &SeenSet{
		id:      uuid.New(),
		entries: make(map[string]model.SeenEntry),
	}
}

// SessionID identifies the run this seen-set belongs to.
func (s *SeenSet) SessionID() uuid.UUID { return s.id }

// Seen reports whether a symbol has alerted this session.
func (s *SeenSet) Seen(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[symbol]
	return ok
}

// MarkSeen records a symbol's first alert. Later marks keep the original
// timestamp.
func (s *SeenSet) MarkSeen(symbol string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[symbol]; ok {
		return
	}
	s.entries[symbol] = model.SeenEntry{Symbol: symbol, FirstAlerted: at}
}

// Clear empties the seen-set and returns how many symbols it held. Cleared
// symbols may alert again.
func (s *SeenSet) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = make(map[string]model.SeenEntry)
	return n
}

// Len returns the number of symbols held.
func (s *SeenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns the seen symbols ordered by first alert time.
func (s *SeenSet) Entries() []model.SeenEntry {
	s.mu.RLock()
	out := make([]model.SeenEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].FirstAlerted.Before(out[j].FirstAlerted)
	})
	return out
}
