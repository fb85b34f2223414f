// Package stream implements the stream aggregator (C5): it turns the raw
// chunks a provider adapter emits into (a) a live sequence of typed Events
// for the consumer and (b) a final AggregatedTurn equivalent to what a
// buffered call would have produced.
package stream

import "sync"

// CancelSignal is a clonable shared flag plus a write-once reason (§5). The
// zero value is a valid, not-yet-cancelled signal.
type CancelSignal struct {
	mu        sync.Mutex
	cancelled bool
	reason    string
}

// Cancel sets the signal. Only the first call's reason is retained; later
// calls are no-ops, matching "write-once reason".
func (s *CancelSignal) Cancel(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	s.reason = reason
}

// Cancelled reports whether Cancel has been called, and with what reason.
func (s *CancelSignal) Cancelled() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled, s.reason
}

// PauseController gates the aggregator's read loop: while paused, Wait
// blocks; Resume unblocks every waiter. The zero value starts unpaused.
type PauseController struct {
	mu     sync.Mutex
	gate   chan struct{}
	paused bool
}

// Pause stops the aggregator from pulling the next chunk. It is idempotent.
func (p *PauseController) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.gate = make(chan struct{})
}

// Resume lets a paused aggregator continue. It is idempotent.
func (p *PauseController) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	close(p.gate)
	p.gate = nil
}

// Wait blocks while paused, and returns immediately otherwise.
func (p *PauseController) Wait() {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate == nil {
		return
	}
	<-gate
}
