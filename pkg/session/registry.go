// Package session keeps the routing handle of every conversation the bot
// has seen, so events that do not originate from a chat turn (an SMS from
// the intercom, a scheduled check) can be delivered back into those chats.
package session

import (
	"maps"
	"sync"
	"time"
)

// ConversationHandle is everything a channel needs to address a proactive
// message to a previously seen conversation.
type ConversationHandle struct {
	Channel    string            `json:"channel"`
	UserID     string            `json:"user_id"`
	ChatID     string            `json:"chat_id"`
	ServiceURL string            `json:"service_url,omitempty"` // callback endpoint for channels that have one
	BotID      string            `json:"bot_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	LastSeen   time.Time         `json:"last_seen"`
}

// Registry stores at most one handle per user id. Entries are replaced on
// every upsert and never removed for the lifetime of the process.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]ConversationHandle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]ConversationHandle)}
}

// Upsert records handle as the conversation for userID, replacing any
// previous one.
func (r *Registry) Upsert(userID string, handle ConversationHandle) {
	if handle.UserID == "" {
		handle.UserID = userID
	}
	if handle.LastSeen.IsZero() {
		handle.LastSeen = time.Now()
	}
	handle.Metadata = maps.Clone(handle.Metadata)

	r.mu.Lock()
	r.handles[userID] = handle
	r.mu.Unlock()
}

// Get returns the handle stored for userID.
func (r *Registry) Get(userID string) (ConversationHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[userID]
	if ok {
		h.Metadata = maps.Clone(h.Metadata)
	}
	return h, ok
}

// Snapshot copies every handle under the read lock and returns. Callers
// iterate the copy without blocking concurrent upserts. Order is
// unspecified.
func (r *Registry) Snapshot() []ConversationHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ConversationHandle, 0, len(r.handles))
	for _, h := range r.handles {
		h.Metadata = maps.Clone(h.Metadata)
		result = append(result, h)
	}
	return result
}

// Len returns the number of distinct user ids seen.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
