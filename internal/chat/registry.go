package chat

import "sync"

// Registry holds one Controller per browser session. Conversations live in
// process memory only; a restart clears them.
type Registry struct {
	mu            sync.Mutex
	conversations map[string]*Controller
	newController func() (*Controller, error)
}

// NewRegistry creates a registry that builds controllers with the given
// constructor on first access.
func NewRegistry(newController func() (*Controller, error)) *Registry {
	return &Registry{
		conversations: make(map[string]*Controller),
		newController: newController,
	}
}

// Get returns the conversation for a session id, creating it on first use.
func (r *Registry) Get(sessionID string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conversations[sessionID]; ok {
		return c, nil
	}

	c, err := r.newController()
	if err != nil {
		return nil, err
	}
	r.conversations[sessionID] = c
	return c, nil
}

// Len reports the number of live conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conversations)
}
