package gateway

import (
	"context"
	"sync"
)

// runRegistry tracks in-flight chat runs so they can be cancelled by
// conversation. A new run for a conversation cancels the previous one.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*run
}

type run struct {
	cancel context.CancelFunc
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*run)}
}

func runKey(principalID, conversationID string) string {
	return principalID + "\x00" + conversationID
}

// start derives a cancellable context for the run. The returned func must
// be called when the run ends.
func (r *runRegistry) start(ctx context.Context, principalID, conversationID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	cur := &run{cancel: cancel}
	key := runKey(principalID, conversationID)

	r.mu.Lock()
	if prev, ok := r.runs[key]; ok {
		prev.cancel()
	}
	r.runs[key] = cur
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		if r.runs[key] == cur {
			delete(r.runs, key)
		}
		r.mu.Unlock()
		cancel()
	}
}

// cancel stops the run for the conversation and reports whether one was
// in flight.
func (r *runRegistry) cancel(principalID, conversationID string) bool {
	key := runKey(principalID, conversationID)

	r.mu.Lock()
	cur, ok := r.runs[key]
	delete(r.runs, key)
	r.mu.Unlock()

	if ok {
		cur.cancel()
	}
	return ok
}

func (r *runRegistry) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
