package server

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// chatLogStore keeps chat history in process memory, keyed by (user, pet)
// so concurrent requests never interleave across callers. History is lost
// on restart by design; durable persistence is out of scope.
type chatLogStore struct {
	mu      sync.RWMutex
	seq     uint64
	entries map[chatLogKey][]chatLogEntry
}

type chatLogKey struct {
	UserID string
	PetID  string
}

type chatLogEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	PetID     string    `json:"pet_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	seq uint64
}

func newChatLogStore() *chatLogStore {
	return &chatLogStore{entries: make(map[chatLogKey][]chatLogEntry)}
}

func (s *chatLogStore) Append(userID, petID, role, content, intent string) chatLogEntry {
	key := chatLogKey{
		UserID: strings.TrimSpace(userID),
		PetID:  strings.TrimSpace(petID),
	}
	entry := chatLogEntry{
		ID:        uuid.NewString(),
		UserID:    key.UserID,
		PetID:     key.PetID,
		Role:      strings.ToLower(strings.TrimSpace(role)),
		Content:   strings.TrimSpace(content),
		Intent:    strings.TrimSpace(intent),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	entry.seq = s.seq
	s.entries[key] = append(s.entries[key], entry)
	return entry
}

// History returns entries in arrival order. Empty filters match everything.
func (s *chatLogStore) History(userID, petID string) []chatLogEntry {
	userFilter := strings.TrimSpace(userID)
	petFilter := strings.TrimSpace(petID)

	s.mu.RLock()
	result := make([]chatLogEntry, 0, 32)
	for key, entries := range s.entries {
		if userFilter != "" && key.UserID != userFilter {
			continue
		}
		if petFilter != "" && key.PetID != petFilter {
			continue
		}
		result = append(result, entries...)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].seq < result[j].seq
	})
	return result
}
