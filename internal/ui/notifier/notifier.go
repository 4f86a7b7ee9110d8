// Package notifier fans out conversation-update pings to SSE listeners.
package notifier

import "sync"

// Notifier broadcasts per-conversation update signals. Listeners receive an
// empty struct when their conversation changed and should re-fetch history.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[string]map[chan struct{}]struct{}
}

// New creates an empty Notifier.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[string]map[chan struct{}]struct{}),
	}
}

// Subscribe registers a listener for one conversation id. The caller must
// Unsubscribe to avoid leaking the channel.
func (n *Notifier) Subscribe(conversationID string) chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	set, ok := n.listeners[conversationID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		n.listeners[conversationID] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (n *Notifier) Unsubscribe(conversationID string, ch chan struct{}) {
	n.mu.Lock()
	if set, ok := n.listeners[conversationID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(n.listeners, conversationID)
		}
	}
	n.mu.Unlock()
	close(ch)
}

// Notify pings all listeners of one conversation. Non-blocking: a full
// channel is skipped, the listener catches up on its next fetch.
func (n *Notifier) Notify(conversationID string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners[conversationID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
